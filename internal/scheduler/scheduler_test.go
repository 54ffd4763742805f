package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls   atomic.Int32
	mu      sync.Mutex
	lastCtx context.Context
}

func (r *countingRunner) RunOnce(ctx context.Context) pipeline.Outcome {
	r.calls.Add(1)
	r.mu.Lock()
	r.lastCtx = ctx
	r.mu.Unlock()
	return pipeline.Outcome{Success: true, Stage: pipeline.StageDone}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every now and then", &countingRunner{}, testLogger(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every now and then")
}

func TestScheduler_RunOnStartup(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@hourly", runner, testLogger(), true)
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Next().IsZero())

	s.Stop()
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_NoStartupRun(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@hourly", runner, testLogger(), false)
	require.NoError(t, err)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Zero(t, runner.calls.Load())
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@every 1s", runner, testLogger(), false)
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_StopCancelsRunContext(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@hourly", runner, testLogger(), true)
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.NotNil(t, runner.lastCtx)
	assert.ErrorIs(t, runner.lastCtx.Err(), context.Canceled)
}

func TestScheduler_TickBeforeStartIsNoop(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@hourly", runner, testLogger(), false)
	require.NoError(t, err)

	s.tick()
	assert.Zero(t, runner.calls.Load())
}

type panickyRunner struct {
	calls atomic.Int32
}

func (r *panickyRunner) RunOnce(context.Context) pipeline.Outcome {
	if r.calls.Add(1) == 1 {
		panic("publisher exploded")
	}
	return pipeline.Outcome{Success: true, Stage: pipeline.StageDone}
}

func TestScheduler_StartupPanicIsRecovered(t *testing.T) {
	var buf bytes.Buffer
	runner := &panickyRunner{}
	s, err := New("@every 1s", runner, slog.New(slog.NewTextHandler(&buf, nil)), true)
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond,
		"the schedule keeps firing after a panicking startup run")
	s.Stop()

	assert.Contains(t, buf.String(), "publisher exploded")
}

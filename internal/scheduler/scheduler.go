// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// Runner executes one ingestion run.
type Runner interface {
	RunOnce(ctx context.Context) pipeline.Outcome
}

// Scheduler invokes a Runner on a standard five-field cron spec and,
// optionally, once at startup. Overlapping ticks are skipped.
type Scheduler struct {
	cron         *cron.Cron
	job          cron.Job
	spec         string
	runner       Runner
	runOnStartup bool
	logger       *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates spec and builds a stopped scheduler.
func New(spec string, runner Runner, logger *slog.Logger, runOnStartup bool) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithLogger(cl))
	s := &Scheduler{
		cron:         c,
		spec:         spec,
		runner:       runner,
		runOnStartup: runOnStartup,
		logger:       logger,
	}
	// The startup run shares the scheduled job's chain, so a panic is
	// recovered and it never overlaps a tick.
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.tick))
	if _, err := c.AddJob(spec, s.job); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing runs. Runs receive a context derived from ctx that is
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if s.runOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("running startup ingestion")
			s.job.Run()
		}()
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next_run", s.Next())
}

// Stop halts the schedule, cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-stopped.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Next returns the next scheduled fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	out := s.runner.RunOnce(ctx)
	if !out.Success {
		s.logger.Warn("scheduled run did not succeed", "run_id", out.RunID, "stage", out.Stage, "reason", out.Reason)
		return
	}
	s.logger.Info("scheduled run complete", "run_id", out.RunID, "inserted", out.Inserted())
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

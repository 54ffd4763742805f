package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/observability"
	"github.com/couchcryptid/arso-air-quality-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<arsopodatki verzija="1.4">
  <vir>Agencija RS za okolje</vir>
  <datum_priprave>01-01-2025 @ 10:30</datum_priprave>
  <postaja sifra="E403" wgs84_sirina="46.065" wgs84_dolzina="14.517" nadm_visina="299">
    <merilno_mesto>LJ Bežigrad</merilno_mesto>
    <datum_od>2025-01-01 09:00</datum_od>
    <datum_do>2025-01-01 10:00</datum_do>
    <pm10>21</pm10>
    <no2>30</no2>
  </postaja>
  <postaja sifra="E411" wgs84_sirina="46.559" wgs84_dolzina="15.645" nadm_visina="270">
    <merilno_mesto>MB Titova</merilno_mesto>
    <datum_od>2025-01-01 09:00</datum_od>
    <datum_do>2025-01-01 10:00</datum_do>
    <o3>41</o3>
  </postaja>
</arsopodatki>`

// --- mocks ---

type mockFetcher struct {
	doc     []byte
	err     error
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (m *mockFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if m.started != nil {
		m.once.Do(func() { close(m.started) })
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.doc, m.err
}

type mockPersister struct {
	mu      sync.Mutex
	entries int
	err     error
}

func (m *mockPersister) Persist(_ context.Context, agg *domain.Aggregate) (domain.PersistSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.PersistSummary{}, m.err
	}
	m.entries = agg.Len()
	return domain.PersistSummary{
		PollutantsEnsured:    len(agg.Pollutants()),
		StationsInserted:     agg.Len(),
		MeasurementsInserted: 3,
	}, nil
}

type mockPublisher struct {
	name      string
	err       error
	published []domain.Snapshot
}

func (m *mockPublisher) Name() string { return m.name }

func (m *mockPublisher) Publish(_ context.Context, snap domain.Snapshot) error {
	m.published = append(m.published, snap)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	fetcher := &mockFetcher{doc: []byte(feed)}
	store := &mockPersister{}
	cache := &mockPublisher{name: "redis"}

	p := pipeline.New(fetcher, testLogger(), newTestMetrics(),
		pipeline.WithPersister(store),
		pipeline.WithPublishers(cache),
	)

	out := p.RunOnce(context.Background())

	require.True(t, out.Success, out.Reason)
	assert.Equal(t, pipeline.StageDone, out.Stage)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 2, out.StationsParsed)
	assert.Equal(t, 2, out.MeasurementsParsed)
	assert.Equal(t, 2, out.StationsInserted)
	assert.Equal(t, 3, out.Inserted())
	assert.Equal(t, 2, store.entries)

	require.Len(t, cache.published, 1)
	assert.Len(t, cache.published[0].Stations, 2)
	assert.Equal(t, "1.4", cache.published[0].Metadata.Version)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	st, ok := snap.FindByID("E403")
	require.True(t, ok)
	require.NotNil(t, st.Latest)
	v, ok := st.Latest.Value(domain.PM10)
	require.True(t, ok)
	assert.InDelta(t, 21.0, v, 1e-9)

	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_WithoutPersister(t *testing.T) {
	p := pipeline.New(&mockFetcher{doc: []byte(feed)}, testLogger(), newTestMetrics())

	out := p.RunOnce(context.Background())

	require.True(t, out.Success, out.Reason)
	assert.Zero(t, out.Inserted())
	_, err := p.Snapshot(context.Background())
	assert.NoError(t, err)
}

func TestPipeline_RunOnce_FetchFailure(t *testing.T) {
	fetchErr := &domain.FetchError{Kind: domain.FetchTimeout, Err: context.DeadlineExceeded}
	store := &mockPersister{}
	p := pipeline.New(&mockFetcher{err: fetchErr}, testLogger(), newTestMetrics(), pipeline.WithPersister(store))

	out := p.RunOnce(context.Background())

	assert.False(t, out.Success)
	assert.Equal(t, pipeline.StageFetch, out.Stage)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Zero(t, store.entries)

	_, err := p.Snapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_ParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		stage pipeline.Stage
	}{
		{
			name:  "malformed document",
			doc:   "<arsopodatki><postaja",
			stage: pipeline.StageParseStations,
		},
		{
			name:  "no station elements",
			doc:   `<arsopodatki verzija="1.4"></arsopodatki>`,
			stage: pipeline.StageParseStations,
		},
		{
			name: "stations without measurement windows",
			doc: `<arsopodatki>
  <postaja sifra="E403"><merilno_mesto>LJ Bežigrad</merilno_mesto></postaja>
</arsopodatki>`,
			stage: pipeline.StageParseMeasurements,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockPersister{}
			p := pipeline.New(&mockFetcher{doc: []byte(tt.doc)}, testLogger(), newTestMetrics(), pipeline.WithPersister(store))

			out := p.RunOnce(context.Background())

			assert.False(t, out.Success)
			assert.Equal(t, tt.stage, out.Stage)
			assert.NotEmpty(t, out.Reason)
			var pf *domain.ParseFailure
			assert.ErrorAs(t, out.Err, &pf)
			assert.Zero(t, store.entries, "nothing is persisted after a parse failure")
		})
	}
}

func TestPipeline_RunOnce_PersistFailure(t *testing.T) {
	store := &mockPersister{err: errors.New("connection reset")}
	cache := &mockPublisher{name: "redis"}
	p := pipeline.New(&mockFetcher{doc: []byte(feed)}, testLogger(), newTestMetrics(),
		pipeline.WithPersister(store),
		pipeline.WithPublishers(cache),
	)

	out := p.RunOnce(context.Background())

	assert.False(t, out.Success)
	assert.Equal(t, pipeline.StagePersist, out.Stage)
	assert.Contains(t, out.Reason, "connection reset")
	assert.Empty(t, cache.published)
}

func TestPipeline_RunOnce_PublishFailureDoesNotFailRun(t *testing.T) {
	broken := &mockPublisher{name: "kafka", err: errors.New("broker down")}
	healthy := &mockPublisher{name: "redis"}
	p := pipeline.New(&mockFetcher{doc: []byte(feed)}, testLogger(), newTestMetrics(),
		pipeline.WithPublishers(broken, healthy),
	)

	out := p.RunOnce(context.Background())

	assert.True(t, out.Success)
	assert.Len(t, broken.published, 1)
	assert.Len(t, healthy.published, 1)
}

func TestPipeline_RunOnce_ConcurrentRunIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fetcher := &mockFetcher{doc: []byte(feed), block: release, started: started}
	p := pipeline.New(fetcher, testLogger(), newTestMetrics())

	first := make(chan pipeline.Outcome, 1)
	go func() { first <- p.RunOnce(context.Background()) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first run never reached the fetch stage")
	}

	skipped := p.RunOnce(context.Background())
	assert.False(t, skipped.Success)
	assert.Equal(t, pipeline.StageLock, skipped.Stage)
	assert.ErrorIs(t, skipped.Err, pipeline.ErrRunInProgress)

	close(release)
	out := <-first
	assert.True(t, out.Success, out.Reason)

	// The lock is released once the first run finishes.
	again := p.RunOnce(context.Background())
	assert.True(t, again.Success, again.Reason)
}

func TestPipeline_RunOnce_ContextCancelled(t *testing.T) {
	fetcher := &mockFetcher{doc: []byte(feed), block: make(chan struct{})}
	p := pipeline.New(fetcher, testLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := p.RunOnce(ctx)
	assert.False(t, out.Success)
	assert.Equal(t, pipeline.StageFetch, out.Stage)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/observability"
	"github.com/google/uuid"
)

// ErrRunInProgress is reported when RunOnce is called while another run holds the lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Fetcher downloads the raw feed document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Persister writes a merged aggregate to the durable store. An error means
// nothing was written; per-station failures are reported in the summary.
type Persister interface {
	Persist(ctx context.Context, agg *domain.Aggregate) (domain.PersistSummary, error)
}

// Publisher pushes the latest snapshot to a secondary sink. Failures are
// logged and never fail the run.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// Stage names the step at which a run stopped.
type Stage string

const (
	StageLock              Stage = "lock"
	StageFetch             Stage = "fetch"
	StageParseStations     Stage = "parse_stations"
	StageParseMeasurements Stage = "parse_measurements"
	StagePersist           Stage = "persist"
	StageDone              Stage = "done"
)

// Outcome summarizes one RunOnce call.
type Outcome struct {
	RunID                string        `json:"run_id"`
	Success              bool          `json:"success"`
	Stage                Stage         `json:"stage"`
	Reason               string        `json:"reason,omitempty"`
	StationsParsed       int           `json:"stations_parsed"`
	MeasurementsParsed   int           `json:"measurements_parsed"`
	Skipped              int           `json:"skipped"`
	Orphans              int           `json:"orphans"`
	StationsInserted     int           `json:"stations_inserted"`
	MeasurementsInserted int           `json:"measurements_inserted"`
	UnitsFailed          int           `json:"units_failed"`
	Duration             time.Duration `json:"duration_ns"`
	Err                  error         `json:"-"`
}

// Inserted returns the number of fact rows written by the run.
func (o Outcome) Inserted() int { return o.MeasurementsInserted }

// Pipeline orchestrates fetch, parse, merge, persist and publish.
type Pipeline struct {
	fetcher    Fetcher
	persister  Persister
	publishers []Publisher
	location   *time.Location
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	ready  atomic.Bool
	latest atomic.Pointer[domain.Snapshot]
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPersister enables the durable store.
func WithPersister(p Persister) Option {
	return func(pl *Pipeline) { pl.persister = p }
}

// WithPublishers adds secondary snapshot sinks.
func WithPublishers(pubs ...Publisher) Option {
	return func(pl *Pipeline) { pl.publishers = append(pl.publishers, pubs...) }
}

// WithLocation sets the zone feed timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(pl *Pipeline) { pl.location = loc }
}

// New creates a Pipeline with the given fetcher and observability.
func New(f Fetcher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:  f,
		location: time.UTC,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// Snapshot returns the projection of the last successful run.
func (p *Pipeline) Snapshot(_ context.Context) (domain.Snapshot, error) {
	snap := p.latest.Load()
	if snap == nil {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return *snap, nil
}

// RunOnce executes one fetch-parse-merge-persist cycle. At most one run
// executes at a time; a concurrent call returns immediately with
// ErrRunInProgress. The returned Outcome always describes what happened.
func (p *Pipeline) RunOnce(ctx context.Context) Outcome {
	out := Outcome{RunID: uuid.NewString()}

	if !p.mu.TryLock() {
		out.Stage = StageLock
		out.Err = ErrRunInProgress
		out.Reason = ErrRunInProgress.Error()
		p.metrics.PipelineRuns.WithLabelValues("skipped").Inc()
		p.logger.Warn("pipeline run skipped", "run_id", out.RunID, "reason", out.Reason)
		return out
	}
	defer p.mu.Unlock()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := time.Now()
	logger := p.logger.With("run_id", out.RunID)
	logger.Info("pipeline run started")

	p.run(ctx, logger, &out)

	out.Duration = time.Since(start)
	p.metrics.RunDuration.Observe(out.Duration.Seconds())
	if out.Success {
		p.metrics.PipelineRuns.WithLabelValues("success").Inc()
		p.metrics.LastSuccess.SetToCurrentTime()
		logger.Info("pipeline run finished",
			"stations", out.StationsParsed,
			"measurements", out.MeasurementsParsed,
			"inserted", out.Inserted(),
			"duration", out.Duration,
		)
	} else {
		p.metrics.PipelineRuns.WithLabelValues("failure").Inc()
		logger.Error("pipeline run failed", "stage", out.Stage, "reason", out.Reason, "duration", out.Duration)
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, out *Outcome) {
	stageStart := time.Now()
	doc, err := p.fetcher.Fetch(ctx)
	p.observeStage(StageFetch, stageStart)
	if err != nil {
		var fe *domain.FetchError
		kind := "unknown"
		if errors.As(err, &fe) {
			kind = string(fe.Kind)
		}
		p.metrics.FetchErrors.WithLabelValues(kind).Inc()
		p.fail(out, StageFetch, err)
		return
	}

	stageStart = time.Now()
	meta, err := domain.ParseMetadata(doc, p.location)
	if err != nil {
		logger.Warn("feed metadata unreadable", "error", err)
	}

	stations := domain.ParseStations(doc, logger)
	p.metrics.ElementsSkipped.WithLabelValues("station").Add(float64(stations.Skipped))
	if !stations.OK() {
		p.fail(out, StageParseStations, stations.Err)
		return
	}

	measurements := domain.ParseMeasurements(doc, p.location, logger)
	p.metrics.ElementsSkipped.WithLabelValues("measurement").Add(float64(measurements.Skipped))
	if !measurements.OK() {
		p.fail(out, StageParseMeasurements, measurements.Err)
		return
	}
	p.observeStage("parse", stageStart)

	out.StationsParsed = len(stations.Items)
	out.MeasurementsParsed = len(measurements.Items)
	out.Skipped = stations.Skipped + measurements.Skipped
	p.metrics.StationsParsed.Set(float64(out.StationsParsed))
	p.metrics.MeasurementsParsed.Set(float64(out.MeasurementsParsed))

	stageStart = time.Now()
	agg := domain.Merge(stations.Items, measurements.Items, logger)
	out.Orphans = agg.Orphans
	p.metrics.OrphanMeasurements.Add(float64(agg.Orphans))
	p.observeStage("merge", stageStart)

	if p.persister != nil {
		stageStart = time.Now()
		summary, err := p.persister.Persist(ctx, agg)
		p.observeStage(StagePersist, stageStart)
		if err != nil {
			p.fail(out, StagePersist, err)
			return
		}
		out.StationsInserted = summary.StationsInserted
		out.MeasurementsInserted = summary.MeasurementsInserted
		out.UnitsFailed = summary.UnitsFailed
		p.metrics.RowsInserted.WithLabelValues("stations").Add(float64(summary.StationsInserted))
		p.metrics.RowsInserted.WithLabelValues("measurements").Add(float64(summary.MeasurementsInserted))
		p.metrics.UnitsFailed.Add(float64(summary.UnitsFailed))
	}

	snap := domain.NewSnapshot(agg, meta)
	p.latest.Store(&snap)

	stageStart = time.Now()
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, snap); err != nil {
			p.metrics.PublishErrors.WithLabelValues(pub.Name()).Inc()
			logger.Warn("snapshot publish failed", "sink", pub.Name(), "error", err)
		}
	}
	p.observeStage("publish", stageStart)

	out.Success = true
	out.Stage = StageDone
	p.ready.Store(true)
}

func (p *Pipeline) fail(out *Outcome, stage Stage, err error) {
	out.Success = false
	out.Stage = stage
	out.Err = err
	if err != nil {
		out.Reason = err.Error()
	}
}

func (p *Pipeline) observeStage(stage Stage, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arso_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion pipeline.
type Metrics struct {
	PipelineRuns    *prometheus.CounterVec   // labels: result={success,failure,skipped}
	StageDuration   *prometheus.HistogramVec // labels: stage={fetch,parse,merge,persist,publish}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Parse and merge metrics.
	StationsParsed     prometheus.Gauge
	MeasurementsParsed prometheus.Gauge
	ElementsSkipped    *prometheus.CounterVec // labels: element={station,measurement}
	OrphanMeasurements prometheus.Counter

	// Persistence and publishing metrics.
	RowsInserted  *prometheus.CounterVec // labels: table={stations,measurements}
	UnitsFailed   prometheus.Counter
	FetchErrors   *prometheus.CounterVec // labels: kind={timeout,connection,http}
	PublishErrors *prometheus.CounterVec // labels: sink={redis,kafka}

	// Serving cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.StageDuration,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.StationsParsed,
		m.MeasurementsParsed,
		m.ElementsSkipped,
		m.OrphanMeasurements,
		m.RowsInserted,
		m.UnitsFailed,
		m.FetchErrors,
		m.PublishErrors,
		m.CacheLookups,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-parse-merge-persist cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		StationsParsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_parsed",
			Help:      "Valid stations in the last parsed feed.",
		}),
		MeasurementsParsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measurements_parsed",
			Help:      "Valid measurements in the last parsed feed.",
		}),
		ElementsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_skipped_total",
			Help:      "Feed elements rejected individually during parsing.",
		}, []string{"element"}),
		OrphanMeasurements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_measurements_total",
			Help:      "Measurements dropped because their station was not in the feed.",
		}),
		RowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Rows inserted into the store by table.",
		}, []string{"table"}),
		UnitsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_units_failed_total",
			Help:      "Per-station units of work rolled back.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Feed download failures by kind.",
		}, []string{"kind"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Snapshot publish failures by sink.",
		}, []string{"sink"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_lookups_total",
			Help:      "Serving cache lookups by result.",
		}, []string{"result"}),
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "surf_engine"

// Metrics holds the Prometheus counters, histograms, and gauges for ingest,
// relinking and scoring.
type Metrics struct {
	ObservationsConsumed prometheus.Counter
	ParseErrors          prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Relink metrics.
	RelinkCycles   *prometheus.CounterVec // labels: outcome={ok,partial,failed}
	RelinkDuration prometheus.Histogram
	IndexSize      *prometheus.GaugeVec // labels: kind={swell,wind}
	LinkedSpots    *prometheus.GaugeVec // labels: kind={swell,wind}, outcome={linked,unlinked}

	// Scoring metrics.
	Scores *prometheus.CounterVec // labels: outcome={ok,no_wind_data,swell_missing,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsConsumed,
		m.ParseErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RelinkCycles,
		m.RelinkDuration,
		m.IndexSize,
		m.LinkedSpots,
		m.Scores,
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
		ObservationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_consumed_total",
			Help:      "Total station observations read from the source topic.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observation_parse_errors_total",
			Help:      "Total observations that could not be parsed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of observations per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract, store and relink cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RelinkCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relink_cycles_total",
			Help:      "Relink cycles by outcome.",
		}, []string{"outcome"}),
		RelinkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relink_duration_seconds",
			Help:      "Duration of index rebuild plus relink.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		IndexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_stations",
			Help:      "Valid stations in the current spatial index by kind.",
		}, []string{"kind"}),
		LinkedSpots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spots",
			Help:      "Spots in the published link table by sensor kind and link outcome.",
		}, []string{"kind", "outcome"}),
		Scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Spot reports by outcome.",
		}, []string{"outcome"}),
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges shared by
// the API server and the survey worker.
type Metrics struct {
	SurveysTotal   *prometheus.CounterVec   // labels: mode={region,point}, plant_type, outcome
	SurveyDuration *prometheus.HistogramVec // labels: mode={region,point}
	SamplePoolSize prometheus.Histogram

	// Raster engine client metrics.
	EngineRequests        *prometheus.CounterVec   // labels: op, outcome={success,error,rejected}
	EngineRequestDuration *prometheus.HistogramVec // labels: op
	VegetationCache       *prometheus.CounterVec   // labels: result={hit,miss}

	// Worker metrics.
	WorkerRunning           prometheus.Gauge
	RequestsConsumed        prometheus.Counter
	ResultsPublished        prometheus.Counter
	RequestErrors           prometheus.Counter
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	EventsEnabled prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SurveysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitescout",
			Name:      "surveys_total",
			Help:      "Completed surveys by mode, plant type, and outcome.",
		}, []string{"mode", "plant_type", "outcome"}),
		SurveyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sitescout",
			Name:      "survey_duration_seconds",
			Help:      "End-to-end survey duration.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"mode"}),
		SamplePoolSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sitescout",
			Name:      "sample_pool_size",
			Help:      "Candidate points pooled across sampling passes.",
			Buckets:   []float64{10, 100, 500, 1000, 2500, 5000, 10000, 20000},
		}),
		EngineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitescout",
			Name:      "engine_requests_total",
			Help:      "Raster engine requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		EngineRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sitescout",
			Name:      "engine_request_duration_seconds",
			Help:      "Raster engine request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		VegetationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitescout",
			Name:      "vegetation_cache_total",
			Help:      "Vegetation layer cache lookups by result.",
		}, []string{"result"}),
		WorkerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sitescout",
			Name:      "worker_running",
			Help:      "1 when the survey worker is active, 0 when shut down.",
		}),
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sitescout",
			Name:      "requests_consumed_total",
			Help:      "Total survey requests read from the request topic.",
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sitescout",
			Name:      "results_published_total",
			Help:      "Total survey results written to the result topic.",
		}),
		RequestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sitescout",
			Name:      "request_errors_total",
			Help:      "Total survey requests that failed before producing a report.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sitescout",
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sitescout",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-survey-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		EventsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sitescout",
			Name:      "events_enabled",
			Help:      "1 when API survey results are published to Kafka, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.SurveysTotal,
		m.SurveyDuration,
		m.SamplePoolSize,
		m.EngineRequests,
		m.EngineRequestDuration,
		m.VegetationCache,
		m.WorkerRunning,
		m.RequestsConsumed,
		m.ResultsPublished,
		m.RequestErrors,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.EventsEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SurveysTotal:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sitescout", Name: "surveys_total"}, []string{"mode", "plant_type", "outcome"}),
		SurveyDuration:          prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "sitescout", Name: "survey_duration_seconds"}, []string{"mode"}),
		SamplePoolSize:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sitescout", Name: "sample_pool_size"}),
		EngineRequests:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sitescout", Name: "engine_requests_total"}, []string{"op", "outcome"}),
		EngineRequestDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "sitescout", Name: "engine_request_duration_seconds"}, []string{"op"}),
		VegetationCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sitescout", Name: "vegetation_cache_total"}, []string{"result"}),
		WorkerRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sitescout", Name: "worker_running"}),
		RequestsConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sitescout", Name: "requests_consumed_total"}),
		ResultsPublished:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sitescout", Name: "results_published_total"}),
		RequestErrors:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sitescout", Name: "request_errors_total"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sitescout", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sitescout", Name: "batch_processing_duration_seconds"}),
		EventsEnabled:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sitescout", Name: "events_enabled"}),
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the conversion pipeline
type Metrics struct {
	// Engine metrics
	EngineBootstraps        prometheus.Counter
	EngineBootstrapFailures prometheus.Counter

	// Conversion metrics
	ConversionsStarted   prometheus.Counter
	ConversionsSucceeded prometheus.Counter
	ConversionsFailed    *prometheus.CounterVec
	ConversionDuration   prometheus.Histogram
	ArtifactSize         prometheus.Histogram

	// Form metrics
	LivePreviews       prometheus.Gauge
	RejectedSelections prometheus.Counter

	// Submission metrics
	Submissions *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers metrics on reg and serves them from gatherer
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EngineBootstraps: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_ai_engine_bootstraps_total",
			Help: "Total number of transcoder engine bootstrap attempts",
		}),
		EngineBootstrapFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_ai_engine_bootstrap_failures_total",
			Help: "Total number of failed transcoder engine bootstraps",
		}),

		ConversionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_ai_conversions_started_total",
			Help: "Total number of conversion jobs started",
		}),
		ConversionsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_ai_conversions_succeeded_total",
			Help: "Total number of conversion jobs that produced audio",
		}),
		ConversionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_ai_conversions_failed_total",
			Help: "Total number of conversion jobs that failed, by kind",
		}, []string{"kind"}),
		ConversionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_ai_conversion_duration_seconds",
			Help:    "Wall time of conversion jobs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ArtifactSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_ai_artifact_size_bytes",
			Help:    "Size of produced audio artifacts",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),

		LivePreviews: factory.NewGauge(prometheus.GaugeOpts{
			Name: "upload_ai_live_previews",
			Help: "Current number of live preview handles",
		}),
		RejectedSelections: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_ai_rejected_selections_total",
			Help: "Total number of file selections rejected by media type",
		}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_ai_submissions_total",
			Help: "Total number of artifact submissions, by outcome",
		}, []string{"outcome"}),

		gatherer: gatherer,
	}
}

// ObserveBootstrap records one engine bootstrap attempt
func (m *Metrics) ObserveBootstrap(err error) {
	m.EngineBootstraps.Inc()
	if err != nil {
		m.EngineBootstrapFailures.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

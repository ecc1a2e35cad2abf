package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Ticks           prometheus.Counter
	DroppedTicks    prometheus.Counter
	CaptureFailures prometheus.Counter
	Rounds          *prometheus.CounterVec
	BackendFailures *prometheus.CounterVec
	EventsRecorded  prometheus.Counter
	Alerts          prometheus.Counter
	RoundDuration   prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_sampler_ticks_total",
			Help: "Sampler ticks fired",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_sampler_ticks_dropped_total",
			Help: "Ticks dropped because a detection round was still in flight",
		}),
		CaptureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_capture_failures_total",
			Help: "Ticks skipped because no frame could be captured",
		}),
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_detection_rounds_total",
			Help: "Completed detection rounds by resulting object type",
		}, []string{"object_type"}),
		BackendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_backend_failures_total",
			Help: "Classification rounds that degraded to the fallback result",
		}, []string{"kind"}),
		EventsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_events_recorded_total",
			Help: "Detection events appended to the event log",
		}),
		Alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_alerts_total",
			Help: "Events that triggered an urgent alert",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dronewatch_round_duration_seconds",
			Help:    "Wall time of a capture and classify round",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dronewatch_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Ticks,
		m.DroppedTicks,
		m.CaptureFailures,
		m.Rounds,
		m.BackendFailures,
		m.EventsRecorded,
		m.Alerts,
		m.RoundDuration,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// ObserveRound records one finished round.
func (m *Metrics) ObserveRound(objectType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Rounds.WithLabelValues(objectType).Inc()
	m.RoundDuration.Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records signaling server activity.
type Collector interface {
	CallCreated(kind string)
	CallAnswered()
	CallEnded(reason string)
	CandidateRelayed()
	ActiveCalls(n int)

	RequestObserved(route, method string, status int, d time.Duration)
	RateLimited(route string)

	SubscriberConnected()
	SubscriberDisconnected()

	// Handler serves the metrics endpoint.
	Handler() http.Handler
}

// PrometheusCollector implements Collector on its own registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	callsCreated      *prometheus.CounterVec
	callsAnswered     prometheus.Counter
	callsEnded        *prometheus.CounterVec
	candidates        prometheus.Counter
	activeCalls       prometheus.Gauge
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimited       *prometheus.CounterVec
	activeSubscribers prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		callsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peercall_calls_created_total",
				Help: "Total number of offers accepted by the mailbox",
			},
			[]string{"kind"},
		),
		callsAnswered: f.NewCounter(prometheus.CounterOpts{
			Name: "peercall_calls_answered_total",
			Help: "Total number of answers stored",
		}),
		callsEnded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peercall_calls_ended_total",
				Help: "Total number of ended calls",
			},
			[]string{"reason"},
		),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Name: "peercall_candidates_relayed_total",
			Help: "Total number of ICE candidates queued for a peer",
		}),
		activeCalls: f.NewGauge(prometheus.GaugeOpts{
			Name: "peercall_active_calls",
			Help: "Calls that are neither ended nor expired",
		}),
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peercall_http_requests_total",
				Help: "Total number of signaling HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "peercall_http_request_duration_seconds",
				Help:    "Signaling HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"route", "method"},
		),
		rateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peercall_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		activeSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "peercall_event_subscribers",
			Help: "Open websocket event streams",
		}),
	}
}

func (c *PrometheusCollector) CallCreated(kind string) { c.callsCreated.WithLabelValues(kind).Inc() }
func (c *PrometheusCollector) CallAnswered()           { c.callsAnswered.Inc() }
func (c *PrometheusCollector) CallEnded(reason string) { c.callsEnded.WithLabelValues(reason).Inc() }
func (c *PrometheusCollector) CandidateRelayed()       { c.candidates.Inc() }
func (c *PrometheusCollector) ActiveCalls(n int)       { c.activeCalls.Set(float64(n)) }

func (c *PrometheusCollector) RequestObserved(route, method string, status int, d time.Duration) {
	c.requests.WithLabelValues(route, method, statusLabel(status)).Inc()
	c.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (c *PrometheusCollector) RateLimited(route string) { c.rateLimited.WithLabelValues(route).Inc() }

func (c *PrometheusCollector) SubscriberConnected()    { c.activeSubscribers.Inc() }
func (c *PrometheusCollector) SubscriberDisconnected() { c.activeSubscribers.Dec() }

func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (c *PrometheusCollector) Registry() *prometheus.Registry { return c.registry }

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

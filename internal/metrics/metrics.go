// Package metrics exposes Prometheus collectors for the HTTP surface and the
// poem and speech pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "photopoet"

type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	poems        *prometheus.CounterVec
	speech       *prometheus.CounterVec
	upstream     *prometheus.HistogramVec
	speechBytes  prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30}

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route"},
		),
		poems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poems_total",
				Help:      "Poem generation attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		speech: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "speech_syntheses_total",
				Help:      "Speech synthesis attempts by voice and outcome.",
			},
			[]string{"voice", "outcome"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Latency of calls to the language model and speech provider.",
				Buckets:   latencyBuckets,
			},
			[]string{"operation"},
		),
		speechBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speech_audio_bytes",
			Help:      "Size of synthesized audio responses.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 8),
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.poems,
		m.speech,
		m.upstream,
		m.speechBytes,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObservePoem records one generation attempt.
func (m *Metrics) ObservePoem(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.poems.WithLabelValues(provider, outcome).Inc()
	m.upstream.WithLabelValues("poem").Observe(d.Seconds())
}

// ObserveSpeech records one synthesis attempt. audioBytes is ignored on failure.
func (m *Metrics) ObserveSpeech(voice, outcome string, audioBytes int, d time.Duration) {
	if m == nil {
		return
	}
	m.speech.WithLabelValues(voice, outcome).Inc()
	m.upstream.WithLabelValues("speech").Observe(d.Seconds())
	if outcome == OutcomeOK {
		m.speechBytes.Observe(float64(audioBytes))
	}
}

const (
	OutcomeOK             = "ok"
	OutcomeInvalid        = "invalid"
	OutcomeUpstreamFailed = "upstream_error"
	OutcomeNotConfigured  = "not_configured"
)

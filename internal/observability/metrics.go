package observability

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for dispatched requests.
const (
	OutcomeLocal      = "local"
	OutcomeProxy      = "proxy"
	OutcomeUnresolved = "unresolved"
	OutcomePreflight  = "preflight"
)

// Metrics holds all Prometheus metrics for the proxy.
type Metrics struct {
	requestsTotal         *prometheus.CounterVec
	requestDuration       *prometheus.HistogramVec
	activeRequests        prometheus.Gauge
	forwardDuration       *prometheus.HistogramVec
	forwardFailures       *prometheus.CounterVec
	credentialTransitions *prometheus.CounterVec
	reloadsTotal          *prometheus.CounterVec
	buildInfo             *prometheus.GaugeVec
	startTime             prometheus.Gauge
	registry              *prometheus.Registry
}

// NewMetrics creates a new Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "devproxy"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by dispatch outcome",
		},
		[]string{"method", "outcome", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "outcome"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	m.forwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_duration_seconds",
			Help:      "Time until the destination returned response headers",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"destination"},
	)

	m.forwardFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_failures_total",
			Help:      "Total number of transport failures while forwarding",
		},
		[]string{"destination"},
	)

	m.credentialTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_transitions_total",
			Help: "Credential record transitions " +
				"(lock, unlock, ignored)",
		},
		[]string{"destination", "transition"},
	)

	m.reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Configuration reloads by result",
		},
		[]string{"result"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the proxy",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the proxy in unix seconds",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.forwardDuration,
		m.forwardFailures,
		m.credentialTransitions,
		m.reloadsTotal,
		m.buildInfo,
		m.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.startTime.SetToCurrentTime()

	return m
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method, outcome string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, outcome, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// RecordForward records the latency of a forward that produced a response.
func (m *Metrics) RecordForward(destination string, duration time.Duration) {
	m.forwardDuration.WithLabelValues(destination).Observe(duration.Seconds())
}

// RecordForwardFailure counts a transport failure for destination.
func (m *Metrics) RecordForwardFailure(destination string) {
	m.forwardFailures.WithLabelValues(destination).Inc()
}

// RecordCredentialTransition counts a lifecycle transition on a
// destination's credential record.
func (m *Metrics) RecordCredentialTransition(destination, transition string) {
	m.credentialTransitions.WithLabelValues(destination, transition).Inc()
}

// RecordReload counts a configuration reload attempt.
func (m *Metrics) RecordReload(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.reloadsTotal.WithLabelValues(result).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

type outcomeKey struct{}

// outcomeHolder is shared between the metrics middleware and the
// handler that decides the outcome further down the chain.
type outcomeHolder struct {
	outcome string
}

// SetOutcome records the dispatch outcome for the current request so the
// metrics middleware can label it. It is a no-op outside that middleware.
func SetOutcome(ctx context.Context, outcome string) {
	if h, ok := ctx.Value(outcomeKey{}).(*outcomeHolder); ok {
		h.outcome = outcome
	}
}

// MetricsMiddleware returns a middleware that records request metrics.
// The outcome label is taken from SetOutcome; requests that never set one
// are counted as unresolved.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &outcomeHolder{outcome: OutcomeUnresolved}

			rw := &metricsResponseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			metrics.activeRequests.Inc()
			defer metrics.activeRequests.Dec()

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), outcomeKey{}, holder)))

			metrics.RecordRequest(r.Method, holder.outcome, rw.status, time.Since(start))
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher interface for streaming support.
func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker interface for WebSocket support.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

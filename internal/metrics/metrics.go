package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Engine metrics
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	conversions      *prometheus.CounterVec
	resolutions      *prometheus.CounterVec
	refreshBatches   prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Engine metrics
	r.providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ativo_provider_requests_total",
			Help: "Total number of upstream provider requests",
		},
		[]string{"provider", "operation", "status"},
	)
	r.providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ativo_provider_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	r.cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ativo_cache_events_total",
			Help: "Cache lookups and writes by event kind",
		},
		[]string{"event"},
	)
	r.conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ativo_currency_conversions_total",
			Help: "Currency conversions by rate source",
		},
		[]string{"degraded"},
	)
	r.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ativo_resolutions_total",
			Help: "Resolution outcomes by operation",
		},
		[]string{"operation", "outcome"},
	)
	r.refreshBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ativo_refresh_batches_total",
			Help: "Completed watchlist refresh batches",
		},
	)

	reg.MustRegister(r.providerRequests)
	reg.MustRegister(r.providerDuration)
	reg.MustRegister(r.cacheEvents)
	reg.MustRegister(r.conversions)
	reg.MustRegister(r.resolutions)
	reg.MustRegister(r.refreshBatches)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordProviderRequest records one upstream attempt.
func (r *Registry) RecordProviderRequest(provider, operation, status string, duration float64) {
	r.providerRequests.WithLabelValues(provider, operation, status).Inc()
	r.providerDuration.WithLabelValues(provider).Observe(duration)
}

// RecordCacheEvent records a cache hit, miss, negative_hit or store.
func (r *Registry) RecordCacheEvent(event string) {
	r.cacheEvents.WithLabelValues(event).Inc()
}

// RecordConversion records a currency conversion.
func (r *Registry) RecordConversion(degraded bool) {
	if degraded {
		r.conversions.WithLabelValues("true").Inc()
		return
	}
	r.conversions.WithLabelValues("false").Inc()
}

// RecordResolution records the outcome of a public operation.
func (r *Registry) RecordResolution(operation, outcome string) {
	r.resolutions.WithLabelValues(operation, outcome).Inc()
}

// RecordRefreshBatch records a completed refresh batch.
func (r *Registry) RecordRefreshBatch() {
	r.refreshBatches.Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the query layer, the RPC client
// and the HTTP services. Each Collector owns its registry so tests can create
// as many as they like.
type Collector struct {
	registry *prometheus.Registry

	CacheLookups  *prometheus.CounterVec
	FetchAttempts *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Mutations     *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
	RPCDuration   *prometheus.HistogramVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_lookups_total",
			Help:      "Cache lookups by query namespace and result",
		}, []string{"namespace", "result"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_fetch_attempts_total",
			Help:      "Individual fetch attempts, retries included",
		}, []string{"namespace"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_fetch_duration_seconds",
			Help:      "Duration of fetches including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"namespace", "outcome"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_mutations_total",
			Help:      "Mutations by name and outcome",
		}, []string{"mutation", "outcome"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_invalidated_entries_total",
			Help:      "Cache entries marked stale by invalidation",
		}, []string{"namespace"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Remote API request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.CacheLookups,
		c.FetchAttempts,
		c.FetchDuration,
		c.Mutations,
		c.Invalidations,
		c.RPCDuration,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) CacheHit(namespace string) {
	c.CacheLookups.WithLabelValues(namespace, "hit").Inc()
}

func (c *Collector) CacheMiss(namespace string) {
	c.CacheLookups.WithLabelValues(namespace, "miss").Inc()
}

func (c *Collector) FetchAttempt(namespace string) {
	c.FetchAttempts.WithLabelValues(namespace).Inc()
}

func (c *Collector) FetchCompleted(namespace, outcome string, d time.Duration) {
	c.FetchDuration.WithLabelValues(namespace, outcome).Observe(d.Seconds())
}

func (c *Collector) MutationCompleted(name, outcome string) {
	c.Mutations.WithLabelValues(name, outcome).Inc()
}

func (c *Collector) Invalidated(namespace string, n int) {
	c.Invalidations.WithLabelValues(namespace).Add(float64(n))
}

// ObserveRequest records one remote API call. Status 0 means the request
// never got a response.
func (c *Collector) ObserveRequest(endpoint string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.RPCDuration.WithLabelValues(endpoint, label).Observe(d.Seconds())
}

// Middleware records request counts and durations per chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

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
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

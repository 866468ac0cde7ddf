package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/provider"
)

// Fetch outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeError         = "error"
	OutcomeThrottled     = "throttled"
	OutcomeInvalidCursor = "invalid_cursor"
	OutcomeCanceled      = "canceled"
)

// Metrics records cache, fetch, prefetch and HTTP activity. It implements
// listing.Observer and navigator.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	fetches       *prometheus.CounterVec
	fetchSeconds  prometheus.Histogram
	prefetches    *prometheus.CounterVec
	staleDropped  prometheus.Counter
	sessions      prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

var (
	_ listing.Observer  = (*Metrics)(nil)
	_ navigator.Metrics = (*Metrics)(nil)
)

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "nimbusview_cache_hits_total",
			Help: "Listing requests served from the session cache",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "nimbusview_cache_misses_total",
			Help: "Listing requests that started or joined a fetch",
		}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbusview_listing_fetches_total",
			Help: "Listing API requests by outcome",
		}, []string{"outcome"}),
		fetchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nimbusview_listing_fetch_seconds",
			Help:    "Listing API request latency",
			Buckets: prometheus.DefBuckets,
		}),
		prefetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbusview_prefetches_total",
			Help: "Background prefetches issued by kind",
		}, []string{"kind"}),
		staleDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "nimbusview_stale_results_dropped_total",
			Help: "Fetch results discarded because a newer navigation started",
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "nimbusview_sessions",
			Help: "Active browsing sessions",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbusview_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nimbusview_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CacheHit implements listing.Observer.
func (m *Metrics) CacheHit(listing.Key) { m.cacheHits.Inc() }

// CacheMiss implements listing.Observer.
func (m *Metrics) CacheMiss(listing.Key) { m.cacheMisses.Inc() }

// FetchDone implements listing.Observer.
func (m *Metrics) FetchDone(_ listing.Key, elapsed time.Duration, err error) {
	m.fetches.WithLabelValues(FetchOutcome(err)).Inc()
	m.fetchSeconds.Observe(elapsed.Seconds())
}

// PrefetchIssued implements navigator.Metrics.
func (m *Metrics) PrefetchIssued(kind string) { m.prefetches.WithLabelValues(kind).Inc() }

// StaleDropped implements navigator.Metrics.
func (m *Metrics) StaleDropped() { m.staleDropped.Inc() }

// SessionsActive sets the active session gauge.
func (m *Metrics) SessionsActive(n int) { m.sessions.Set(float64(n)) }

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// FetchOutcome classifies a fetch result for the outcome label.
func FetchOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case provider.IsThrottled(err):
		return OutcomeThrottled
	case provider.IsInvalidCursor(err):
		return OutcomeInvalidCursor
	default:
		return OutcomeError
	}
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync outcomes reported on portal_sync_total.
const (
	SyncResultSuccess     = "success"
	SyncResultAuthFailed  = "auth_failed"
	SyncResultPortalError = "portal_error"
	SyncResultError       = "error"
)

// MetricsService owns a private Prometheus registry for the API and the portal sync.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	syncTotal       *prometheus.CounterVec
	scrapeDuration  *prometheus.HistogramVec
	catalogReloads  *prometheus.CounterVec
	recommendations *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	syncTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_sync_total",
		Help: "Portal synchronisations by result",
	}, []string{"result"})

	scrapeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_scrape_duration_seconds",
		Help:    "Duration of portal page fetches",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"page"})

	catalogReloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_reload_total",
		Help: "Catalog reloads by result",
	}, []string{"result"})

	recommendations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_runs_total",
		Help: "Recommendation runs by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		dbQueryDuration, syncTotal, scrapeDuration, catalogReloads, recommendations, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		syncTotal:       syncTotal,
		scrapeDuration:  scrapeDuration,
		catalogReloads:  catalogReloads,
		recommendations: recommendations,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database operation timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordSync counts a finished portal sync.
func (m *MetricsService) RecordSync(result string) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(result).Inc()
}

// ObservePortalScrape records how long one portal page took to fetch.
func (m *MetricsService) ObservePortalScrape(page string, duration time.Duration) {
	if m == nil {
		return
	}
	m.scrapeDuration.WithLabelValues(page).Observe(duration.Seconds())
}

// RecordCatalogReload counts a catalog reload.
func (m *MetricsService) RecordCatalogReload(result string) {
	if m == nil {
		return
	}
	m.catalogReloads.WithLabelValues(result).Inc()
}

// RecordRecommendation counts a recommendation run.
func (m *MetricsService) RecordRecommendation(result string) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(result).Inc()
}

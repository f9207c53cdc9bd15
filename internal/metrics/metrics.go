package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the storefront.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Catalog metrics
	DesignsCreated prometheus.Counter
	DesignsDeleted prometheus.Counter
	AssetWrites    *prometheus.CounterVec
	AssetCleanups  *prometheus.CounterVec
	OrphansSwept   prometheus.Counter

	// Payment metrics
	Payments *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DesignsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "designs_created_total",
			Help:      "Total number of designs created",
		}),
		DesignsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "designs_deleted_total",
			Help:      "Total number of designs deleted",
		}),
		AssetWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_writes_total",
				Help:      "Asset writes by area and outcome",
			},
			[]string{"area", "status"},
		),
		AssetCleanups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_cleanups_total",
				Help:      "Asset directory removals by outcome",
			},
			[]string{"status"},
		),
		OrphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_designs_swept_total",
			Help:      "Designs removed because their assets never completed",
		}),
		Payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Payment transitions by resulting status",
			},
			[]string{"status"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.DesignsCreated,
		c.DesignsDeleted,
		c.AssetWrites,
		c.AssetCleanups,
		c.OrphansSwept,
		c.Payments,
		c.CacheHits,
		c.CacheMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) DesignCreated() {
	if c != nil {
		c.DesignsCreated.Inc()
	}
}

func (c *Collector) DesignDeleted() {
	if c != nil {
		c.DesignsDeleted.Inc()
	}
}

func (c *Collector) AssetWrite(area string, err error) {
	if c != nil {
		c.AssetWrites.WithLabelValues(area, outcome(err)).Inc()
	}
}

func (c *Collector) AssetCleanup(err error) {
	if c != nil {
		c.AssetCleanups.WithLabelValues(outcome(err)).Inc()
	}
}

func (c *Collector) OrphanSwept() {
	if c != nil {
		c.OrphansSwept.Inc()
	}
}

func (c *Collector) Payment(status string) {
	if c != nil {
		c.Payments.WithLabelValues(status).Inc()
	}
}

func (c *Collector) CacheHit() {
	if c != nil {
		c.CacheHits.Inc()
	}
}

func (c *Collector) CacheMiss() {
	if c != nil {
		c.CacheMisses.Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

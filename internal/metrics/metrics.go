// Package metrics exposes service counters on a private Prometheus registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"goflare.io/gridiron/internal/models"
)

const namespace = "gridiron"

// Collector records cache, upstream and prediction activity.
type Collector struct {
	registry *prometheus.Registry

	CacheLookups     *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	Predictions      *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by feed and outcome",
			},
			[]string{"resource", "outcome"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Provider requests by feed and status code",
			},
			[]string{"resource", "status"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Provider request latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"resource"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Predictions by result kind",
			},
			[]string{"kind"},
		),
	}

	c.registry.MustRegister(
		c.CacheLookups,
		c.UpstreamRequests,
		c.UpstreamLatency,
		c.Predictions,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CacheHit counts a fresh cache read.
func (c *Collector) CacheHit(resource string) {
	c.CacheLookups.WithLabelValues(resource, "hit").Inc()
}

// CacheMiss counts a read that went upstream.
func (c *Collector) CacheMiss(resource string) {
	c.CacheLookups.WithLabelValues(resource, "miss").Inc()
}

// ObserveUpstream records one provider request. Requests that never got a
// response are labelled "error".
func (c *Collector) ObserveUpstream(resource string, status int, elapsed time.Duration, _ error) {
	code := "error"
	if status != 0 {
		code = strconv.Itoa(status)
	}
	c.UpstreamRequests.WithLabelValues(resource, code).Inc()
	c.UpstreamLatency.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// ObservePrediction counts a computed or neutral prediction.
func (c *Collector) ObservePrediction(neutral bool) {
	kind := "computed"
	if neutral {
		kind = "neutral"
	}
	c.Predictions.WithLabelValues(kind).Inc()
}

// RegisterCache exposes the in-process cache size and expiry count, read at scrape time.
func (c *Collector) RegisterCache(snapshot func() models.Snapshot) error {
	entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Resident cache entries, including unread stale ones",
	}, func() float64 {
		return float64(snapshot().Size)
	})
	expirations := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_expirations_total",
		Help:      "Entries dropped for being stale",
	}, func() float64 {
		return float64(snapshot().Expirations)
	})
	for _, col := range []prometheus.Collector{entries, expirations} {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Package observability bundles the Prometheus metrics for the gateway: how
// often upstream is called and with what outcome, how often the rate gate
// skips a call, and how the record and snapshot caches behave.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for upstream fetches.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeAuth  = "auth_error"
)

// Collector holds the gateway's Prometheus metrics and provides a /metrics
// handler. A nil *Collector is valid everywhere and records nothing, so
// tests can pass nil.
type Collector struct {
	gatherer prometheus.Gatherer

	UpstreamFetches   *prometheus.CounterVec
	RateLimitSkips    *prometheus.CounterVec
	SnapshotFallbacks *prometheus.CounterVec

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
}

// NewCollector registers the gateway metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Re-registration
// reuses the existing collectors, so construction is idempotent.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfence_upstream_fetches_total",
		Help: "Total upstream position-feed fetch attempts, labeled by outcome.",
	}, []string{"outcome"}), "skyfence_upstream_fetches_total")
	if err != nil {
		return nil, err
	}

	skips, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfence_rate_limit_skips_total",
		Help: "Fetch cycles skipped because the rate gate was closed, labeled by category.",
	}, []string{"category"}), "skyfence_rate_limit_skips_total")
	if err != nil {
		return nil, err
	}

	fallbacks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfence_snapshot_fallbacks_total",
		Help: "Fallback snapshot consultations, labeled by result (served or empty).",
	}, []string{"result"}), "skyfence_snapshot_fallbacks_total")
	if err != nil {
		return nil, err
	}

	hits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyfence_record_cache_hits_total",
		Help: "Aircraft record lookups served from cache.",
	}), "skyfence_record_cache_hits_total")
	if err != nil {
		return nil, err
	}
	misses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyfence_record_cache_misses_total",
		Help: "Aircraft record lookups that required a store fetch.",
	}), "skyfence_record_cache_misses_total")
	if err != nil {
		return nil, err
	}
	evictions, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyfence_record_cache_evictions_total",
		Help: "Aircraft record cache entries evicted by the capacity sweep.",
	}), "skyfence_record_cache_evictions_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		UpstreamFetches:   fetches,
		RateLimitSkips:    skips,
		SnapshotFallbacks: fallbacks,
		CacheHits:         hits,
		CacheMisses:       misses,
		CacheEvictions:    evictions,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordUpstreamFetch counts one fetch attempt with the given outcome label.
func (c *Collector) RecordUpstreamFetch(outcome string) {
	if c == nil || c.UpstreamFetches == nil {
		return
	}
	c.UpstreamFetches.WithLabelValues(outcome).Inc()
}

// RecordRateLimitSkip counts one gate-closed skip for a category.
func (c *Collector) RecordRateLimitSkip(category string) {
	if c == nil || c.RateLimitSkips == nil {
		return
	}
	c.RateLimitSkips.WithLabelValues(category).Inc()
}

// RecordSnapshotFallback counts one fallback consultation result.
func (c *Collector) RecordSnapshotFallback(result string) {
	if c == nil || c.SnapshotFallbacks == nil {
		return
	}
	c.SnapshotFallbacks.WithLabelValues(result).Inc()
}

// RecordCacheHit satisfies the record cache's Recorder interface.
func (c *Collector) RecordCacheHit() {
	if c == nil || c.CacheHits == nil {
		return
	}
	c.CacheHits.Inc()
}

// RecordCacheMiss satisfies the record cache's Recorder interface.
func (c *Collector) RecordCacheMiss() {
	if c == nil || c.CacheMisses == nil {
		return
	}
	c.CacheMisses.Inc()
}

// RecordCacheEvictions satisfies the record cache's Recorder interface.
func (c *Collector) RecordCacheEvictions(n int) {
	if c == nil || c.CacheEvictions == nil {
		return
	}
	c.CacheEvictions.Add(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

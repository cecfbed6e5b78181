package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupExpired = "expired" // Found in the map, but past its deadline.

	expiredOnRead  = "read"
	expiredOnSweep = "sweep"

	sweepOk     = "ok"
	sweepFailed = "failed"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttlcache_lookups_total",
		Help: "Total number of cache lookups.",
	}, []string{"cache", "status" /* hit | miss | expired */})
	cacheExpiredEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttlcache_expired_entries_total",
		Help: "Total number of expired entries physically removed from the cache.",
	}, []string{"cache", "path" /* read | sweep */})
	cacheSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttlcache_sweeps_total",
		Help: "Total number of reaper passes.",
	}, []string{"cache", "status" /* ok | failed */})
	cacheSweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ttlcache_sweep_duration_seconds",
		Help:    "Time spent holding the cache lock while sweeping expired entries.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	}, []string{"cache"})
)

// cacheMetrics binds the metric vectors to a single cache name so the hot path skips label lookups.
type cacheMetrics struct {
	hits, misses, expiredLookups prometheus.Counter
	expiredOnRead, expiredSweep  prometheus.Counter
	sweepsOk, sweepsFailed       prometheus.Counter
	sweepDuration                prometheus.Observer
}

func newCacheMetrics(name string) *cacheMetrics {
	return &cacheMetrics{
		hits:           cacheLookups.WithLabelValues(name, lookupHit),
		misses:         cacheLookups.WithLabelValues(name, lookupMiss),
		expiredLookups: cacheLookups.WithLabelValues(name, lookupExpired),
		expiredOnRead:  cacheExpiredEntries.WithLabelValues(name, expiredOnRead),
		expiredSweep:   cacheExpiredEntries.WithLabelValues(name, expiredOnSweep),
		sweepsOk:       cacheSweeps.WithLabelValues(name, sweepOk),
		sweepsFailed:   cacheSweeps.WithLabelValues(name, sweepFailed),
		sweepDuration:  cacheSweepDuration.WithLabelValues(name),
	}
}

package common

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jbandu/fleetscraper/internal/metrics"
)

// CacheService wraps an in-process go-cache instance. The engine only caches
// read-mostly reference data, so per-process caching is enough.
type CacheService struct {
	cache      *cache.Cache
	metricsReg *metrics.MetricsRegistry
}

func NewCacheService(defaultExpiration, cleanupInterval time.Duration) *CacheService {
	return &CacheService{cache: cache.New(defaultExpiration, cleanupInterval)}
}

func NewCacheServiceWithMetrics(defaultExpiration, cleanupInterval time.Duration, metricsReg *metrics.MetricsRegistry) *CacheService {
	return &CacheService{
		cache:      cache.New(defaultExpiration, cleanupInterval),
		metricsReg: metricsReg,
	}
}

// extractCacheKeyPattern extracts the pattern from a cache key (e.g. "typespec" from "typespec:738")
func extractCacheKeyPattern(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) > 0 {
		return parts[0]
	}
	return "unknown"
}

func (cs *CacheService) Set(key string, value interface{}, duration time.Duration) {
	cs.cache.Set(key, value, duration)
}

func (cs *CacheService) Get(key string) (interface{}, bool) {
	val, found := cs.cache.Get(key)

	if cs.metricsReg != nil {
		pattern := extractCacheKeyPattern(key)
		if found {
			cs.metricsReg.CacheHitsTotal.WithLabelValues(pattern).Inc()
		} else {
			cs.metricsReg.CacheMissesTotal.WithLabelValues(pattern).Inc()
		}
	}

	return val, found
}

func (cs *CacheService) Delete(key string) {
	cs.cache.Delete(key)
}

// GetOrSet returns the cached value or runs loader and caches its result.
func (cs *CacheService) GetOrSet(key string, duration time.Duration, loader func() (interface{}, error)) (interface{}, error) {
	if val, found := cs.Get(key); found {
		return val, nil
	}

	val, err := loader()
	if err != nil {
		return nil, err
	}
	cs.Set(key, val, duration)
	return val, nil
}

package providers

import (
	"strings"
	"time"

	"profmon/internal/structures"
)

// instrumentedCache counts lookups per key namespace, the part of the key
// before the first colon: "pic" for picture hashes, "targets" and "target"
// for API responses.
type instrumentedCache struct {
	inner   CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *instrumentedCache) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits(cacheNamespace(key))
	} else {
		c.metrics.IncCacheMisses(cacheNamespace(key))
	}
	return val, ok
}

func (c *instrumentedCache) Set(key string, value []byte, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
}

func cacheNamespace(key string) string {
	ns, _, _ := strings.Cut(key, ":")
	return ns
}

// NewInstrumentedCacheProvider returns the shared cache. A disabled cache
// is returned bare so that it reports no misses.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	inner := NewCacheProvider(conf, logger)
	if !conf.Cache.Enabled {
		return inner
	}
	return &instrumentedCache{inner: inner, metrics: metrics}
}

package providers

import (
	"time"
	"unsafe"

	"github.com/coocood/freecache"

	"profmon/internal/structures"
)

type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

type CacheProvider struct {
	cache      *freecache.Cache
	defaultTTL time.Duration
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Cache disabled")
		return &noopCache{}
	}

	sizeBytes := conf.Cache.Size * 1024 * 1024
	ttl := max(conf.Cache.TTL, time.Second)

	logger.Infof(TypeApp, "Cache initialized: %dMB, default TTL=%s", conf.Cache.Size, ttl)

	return &CacheProvider{
		cache:      freecache.NewCache(sizeBytes),
		defaultTTL: ttl,
	}
}

// unsafeStringToBytes converts string to []byte without allocation.
// Safe when the result is only read (not modified), which is the case
// for freecache — it copies keys internally.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores value for ttl, or for the configured default when ttl is
// zero. freecache works in whole seconds.
func (c *CacheProvider) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	_ = c.cache.Set(unsafeStringToBytes(key), value, max(int(ttl.Seconds()), 1))
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool)             { return nil, false }
func (n *noopCache) Set(_ string, _ []byte, _ time.Duration) {}

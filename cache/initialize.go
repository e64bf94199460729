package cache

import (
	"time"

	"account-service/config"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// ProjectionCache stores serialized listing responses keyed by viewer role.
// A miss or a backend failure is reported as not found.
type ProjectionCache struct {
	backend cache.Cache
	ttl     time.Duration
}

// InitializeCache connects the configured backend. It returns nil, nil when
// caching is disabled.
func InitializeCache(cfg config.CacheConfig) (*ProjectionCache, error) {
	if !cfg.Enabled() {
		logger.Info("Cache disabled")
		return nil, nil
	}

	backend, err := cache.New(cache.Config{
		Type:          cfg.Type,
		RedisAddr:     cfg.Addr,
		RedisPassword: cfg.Password,
		RedisDB:       cfg.DB,
	})
	if err != nil {
		logger.Error("Failed to initialize cache:", zap.Error(err), zap.String("type", cfg.Type))
		return nil, err
	}

	logger.Info("Cache initialized successfully", zap.String("type", cfg.Type))
	return &ProjectionCache{backend: backend, ttl: cfg.TTL}, nil
}

func (c *ProjectionCache) Get(key string) ([]byte, bool) {
	cached, err := c.backend.Get(key)
	if err != nil {
		return nil, false
	}
	switch v := cached.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	}
	return nil, false
}

// Set stores value as a string; Get accepts either form back
func (c *ProjectionCache) Set(key string, value []byte) {
	c.backend.Set(key, string(value), c.ttl)
}

func (c *ProjectionCache) Delete(keys ...string) {
	for _, key := range keys {
		c.backend.Delete(key)
	}
}

func (c *ProjectionCache) Close() {
	c.backend.Close()
}

package cache

import (
	"fmt"

	"github.com/explainable-finance/verdict/internal/domain"
)

// New creates a result cache from configuration.
func New(cfg domain.CacheConfig) (domain.ResultCache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryCache(cfg.MaxEntries), nil
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

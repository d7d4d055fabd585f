package domain

import (
	"context"
	"time"
)

// ResultCache memoizes serialized decision results keyed by applicant
// fingerprint. The cache is a pure performance optimization: any failure is
// treated as a miss and the evaluation recomputes.
type ResultCache interface {
	// Get retrieves a cached value. Returns nil, nil on miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Bounded in-memory cache settings (Community tier)
	MaxEntries int
	TTL        time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetAccountProfile retrieves cached cross-batch account statistics.
	GetAccountProfile(ctx context.Context, tenantID string, accountCode string) (*AccountProfile, error)

	// SetAccountProfile caches account statistics between batches.
	SetAccountProfile(ctx context.Context, tenantID string, accountCode string, profile *AccountProfile, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for rapid-succession velocity checks across batches.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AccountProfile holds per-account running statistics carried between
// batches so the worker can spot shifts against an account's history.
type AccountProfile struct {
	AccountCode string  `json:"acct"`
	Count       int64   `json:"n"`
	MeanAmount  float64 `json:"mean"`
	StdAmount   float64 `json:"std"`
	MaxAmount   float64 `json:"max"`
	LastSeen    string  `json:"lastSeen"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

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

	// GetRegistrationRule retrieves a cached registration rule by state.
	GetRegistrationRule(ctx context.Context, tenantID string, stateCode string) (*RegistrationRule, error)

	// SetRegistrationRule caches a registration rule under its state code.
	SetRegistrationRule(ctx context.Context, tenantID string, rule *RegistrationRule, ttl time.Duration) error

	// GetInsuranceRule retrieves a cached insurance rule by state.
	GetInsuranceRule(ctx context.Context, tenantID string, stateCode string) (*InsuranceRule, error)

	// SetInsuranceRule caches an insurance rule under its state code.
	SetInsuranceRule(ctx context.Context, tenantID string, rule *InsuranceRule, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for quote activity checks (e.g., quotes per lead in a window).
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// GetCounter reads a counter without incrementing it.
	// Returns 0, nil for a missing or expired counter.
	GetCounter(ctx context.Context, tenantID string, key string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
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

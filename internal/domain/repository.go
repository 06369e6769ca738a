// Package domain defines the core interfaces and types for Onroad.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Registration rule operations. Lookups by state code return the
	// highest enabled version.
	SaveRegistrationRule(ctx context.Context, tenantID string, rule *RegistrationRule) error
	GetRegistrationRule(ctx context.Context, tenantID string, stateCode string) (*RegistrationRule, error)
	ListRegistrationRules(ctx context.Context, tenantID string) ([]*RegistrationRule, error)

	// Insurance rule operations
	SaveInsuranceRule(ctx context.Context, tenantID string, rule *InsuranceRule) error
	GetInsuranceRule(ctx context.Context, tenantID string, stateCode string) (*InsuranceRule, error)
	GetInsuranceRuleByID(ctx context.Context, tenantID string, ruleID string) (*InsuranceRule, error)
	ListInsuranceRules(ctx context.Context, tenantID string) ([]*InsuranceRule, error)

	// Price snapshots (append-only audit trail)
	SaveSnapshot(ctx context.Context, tenantID string, snap *PriceSnapshot) error
	GetSnapshot(ctx context.Context, tenantID string, snapID string) (*PriceSnapshot, error)
	GetSnapshotsByLead(ctx context.Context, tenantID string, leadID string, since time.Time) ([]*PriceSnapshot, error)

	// Offer configuration operations
	SaveOfferConfig(ctx context.Context, tenantID string, offer *OfferConfig) error
	GetOfferConfig(ctx context.Context, tenantID string, offerID string) (*OfferConfig, error)
	ListOfferConfigs(ctx context.Context, tenantID string) ([]*OfferConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

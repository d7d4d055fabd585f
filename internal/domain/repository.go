package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Application workflow
	SaveApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id string) (*Application, error)
	ListApplications(ctx context.Context, status string) ([]*Application, error)
	UpdateApplication(ctx context.Context, app *Application) error

	// Decision history (audit trail, prompt context)
	SaveDecision(ctx context.Context, rec *DecisionRecord) error
	ListDecisions(ctx context.Context, d Domain, limit int) ([]*DecisionRecord, error)

	// Policy memory
	SavePolicy(ctx context.Context, p *PolicyConfig) error
	GetPolicy(ctx context.Context, id string) (*PolicyConfig, error)
	ListPolicies(ctx context.Context, domain string) ([]*PolicyConfig, error)
	DeletePolicy(ctx context.Context, id string) error

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

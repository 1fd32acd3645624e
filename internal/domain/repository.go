// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for durable result storage.
// All methods require tenantID for strict multi-tenancy isolation.
// The engine itself only hands values to a Repository; it never reads
// them back on the scoring path.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	GetTransactionsByAccount(ctx context.Context, tenantID string, accountCode string, since time.Time) ([]*Transaction, error)

	// Anomaly results
	SaveAnomalyResults(ctx context.Context, tenantID string, results []AnomalyResult) error
	GetAnomalyResult(ctx context.Context, tenantID string, txID string) (*AnomalyResult, error)

	// Monitoring history
	SaveSnapshot(ctx context.Context, tenantID string, snap *PerformanceSnapshot) error
	ListSnapshots(ctx context.Context, tenantID string, modelName string, since time.Time) ([]*PerformanceSnapshot, error)
	SaveDriftMetrics(ctx context.Context, tenantID string, metrics []DriftMetric) error

	// Alerts. ResolveAlert is the only permitted mutation.
	SaveAlert(ctx context.Context, tenantID string, alert *Alert) error
	ListAlerts(ctx context.Context, tenantID string, unresolvedOnly bool) ([]*Alert, error)
	ResolveAlert(ctx context.Context, tenantID string, alertID string) error

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

// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(tx.Metadata)

	var ts interface{}
	if tx.HasTimestamp() {
		ts = tx.Timestamp
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, type, account_code, entity,
			amount, debit_amount, credit_amount,
			timestamp, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.Type,
		tx.AccountCode, tx.Entity,
		tx.Amount, tx.DebitAmount, tx.CreditAmount,
		ts, tx.CreatedAt,
		string(metadata),
	)
	return err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, type, account_code, entity,
			   amount, debit_amount, credit_amount,
			   timestamp, created_at, metadata
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// GetTransactionsByAccount retrieves transactions for an account code
// with tenant isolation, newest first.
func (r *SQLRepository) GetTransactionsByAccount(ctx context.Context, tenantID string, accountCode string, since time.Time) ([]*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, type, account_code, entity,
			   amount, debit_amount, credit_amount,
			   timestamp, created_at, metadata
		FROM transactions
		WHERE tenant_id = ?
		  AND account_code = ?
		  AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, accountCode, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var metadata sql.NullString
	var ts sql.NullTime
	var debit, credit sql.NullFloat64

	if err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.Type,
		&tx.AccountCode, &tx.Entity,
		&tx.Amount, &debit, &credit,
		&ts, &tx.CreatedAt,
		&metadata,
	); err != nil {
		return nil, err
	}

	if ts.Valid {
		tx.Timestamp = ts.Time
	}
	if debit.Valid {
		tx.DebitAmount = &debit.Float64
	}
	if credit.Valid {
		tx.CreditAmount = &credit.Float64
	}
	if metadata.Valid && metadata.String != "" {
		json.Unmarshal([]byte(metadata.String), &tx.Metadata)
	}

	return &tx, nil
}

// SaveAnomalyResults stores a batch of verdicts with tenant isolation.
func (r *SQLRepository) SaveAnomalyResults(ctx context.Context, tenantID string, results []domain.AnomalyResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(results) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO anomaly_results (
			id, tenant_id, tx_id, anomaly_score, is_anomaly,
			detection_method, confidence_level, anomaly_reasons, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		reasons, _ := json.Marshal(res.AnomalyReasons)
		flagged := 0
		if res.IsAnomaly {
			flagged = 1
		}
		if _, err := stmt.ExecContext(ctx,
			res.ID, tenantID, res.TransactionID,
			res.AnomalyScore, flagged,
			string(res.DetectionMethod), res.ConfidenceLevel,
			string(reasons), res.Timestamp,
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// GetAnomalyResult retrieves the most recent verdict for a transaction
// with tenant isolation.
func (r *SQLRepository) GetAnomalyResult(ctx context.Context, tenantID string, txID string) (*domain.AnomalyResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, anomaly_score, is_anomaly,
			   detection_method, confidence_level, anomaly_reasons, timestamp
		FROM anomaly_results
		WHERE tenant_id = ? AND tx_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var res domain.AnomalyResult
	var flagged int
	var method, reasons string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(
		&res.ID, &res.TenantID, &res.TransactionID,
		&res.AnomalyScore, &flagged,
		&method, &res.ConfidenceLevel,
		&reasons, &res.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res.IsAnomaly = flagged == 1
	res.DetectionMethod = domain.EnsembleMethod(method)
	json.Unmarshal([]byte(reasons), &res.AnomalyReasons)

	return &res, nil
}

// SaveSnapshot stores a performance snapshot with tenant isolation.
func (r *SQLRepository) SaveSnapshot(ctx context.Context, tenantID string, snap *domain.PerformanceSnapshot) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO performance_snapshots (
			id, tenant_id, model_name, accuracy, precision_score, recall,
			f1_score, false_positive_rate, false_negative_rate, roc_auc, pr_auc,
			samples_processed, anomalies_detected, processing_time_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		snap.ID, tenantID, snap.ModelName,
		snap.Accuracy, snap.Precision, snap.Recall,
		snap.F1Score, snap.FalsePosRate, snap.FalseNegRate,
		snap.ROCAUC, snap.PRAUC,
		snap.SamplesProcessed, snap.AnomaliesDetected, snap.ProcessingTimeMs,
		snap.Timestamp,
	)
	return err
}

// ListSnapshots retrieves a model's snapshot history since a point in
// time, oldest first.
func (r *SQLRepository) ListSnapshots(ctx context.Context, tenantID string, modelName string, since time.Time) ([]*domain.PerformanceSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, model_name, accuracy, precision_score, recall,
			   f1_score, false_positive_rate, false_negative_rate, roc_auc, pr_auc,
			   samples_processed, anomalies_detected, processing_time_ms, timestamp
		FROM performance_snapshots
		WHERE tenant_id = ? AND model_name = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, modelName, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.PerformanceSnapshot
	for rows.Next() {
		var snap domain.PerformanceSnapshot
		var tenant string
		if err := rows.Scan(
			&snap.ID, &tenant, &snap.ModelName,
			&snap.Accuracy, &snap.Precision, &snap.Recall,
			&snap.F1Score, &snap.FalsePosRate, &snap.FalseNegRate,
			&snap.ROCAUC, &snap.PRAUC,
			&snap.SamplesProcessed, &snap.AnomaliesDetected, &snap.ProcessingTimeMs,
			&snap.Timestamp,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &snap)
	}

	return snapshots, rows.Err()
}

// SaveDriftMetrics stores a batch of drift metrics with tenant isolation.
func (r *SQLRepository) SaveDriftMetrics(ctx context.Context, tenantID string, metrics []domain.DriftMetric) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(metrics) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO drift_metrics (
			id, tenant_id, feature_name, drift_score, drift_threshold,
			is_drift_detected, drift_type, statistical_test, p_value,
			reference_period, current_period, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range metrics {
		detected := 0
		if m.IsDriftDetected {
			detected = 1
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, tenantID, m.FeatureName,
			m.DriftScore, m.DriftThreshold, detected,
			string(m.DriftType), m.StatisticalTest, m.PValue,
			m.ReferencePeriod, m.CurrentPeriod, m.Timestamp,
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// SaveAlert stores an alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.Alert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	resolved := 0
	if alert.IsResolved {
		resolved = 1
	}

	query := `
		INSERT INTO alerts (
			id, tenant_id, model_name, type, severity,
			metric_name, current_value, threshold_value,
			description, recommendation, is_resolved, created_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.ModelName,
		string(alert.Type), string(alert.Severity),
		alert.MetricName, alert.CurrentValue, alert.ThresholdValue,
		alert.Description, alert.Recommendation,
		resolved, alert.CreatedAt, alert.ResolvedAt,
	)
	return err
}

// ListAlerts retrieves a tenant's alerts, newest first, optionally
// filtered to unresolved entries.
func (r *SQLRepository) ListAlerts(ctx context.Context, tenantID string, unresolvedOnly bool) ([]*domain.Alert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, model_name, type, severity,
			   metric_name, current_value, threshold_value,
			   description, recommendation, is_resolved, created_at, resolved_at
		FROM alerts
		WHERE tenant_id = ?
	`
	if unresolvedOnly {
		query += ` AND is_resolved = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var tenant, alertType, severity string
		var recommendation sql.NullString
		var resolved int
		var resolvedAt sql.NullTime

		if err := rows.Scan(
			&a.ID, &tenant, &a.ModelName,
			&alertType, &severity,
			&a.MetricName, &a.CurrentValue, &a.ThresholdValue,
			&a.Description, &recommendation,
			&resolved, &a.CreatedAt, &resolvedAt,
		); err != nil {
			return nil, err
		}

		a.Type = domain.AlertType(alertType)
		a.Severity = domain.AlertSeverity(severity)
		a.Recommendation = recommendation.String
		a.IsResolved = resolved == 1
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// ResolveAlert marks an alert resolved. The only permitted mutation.
func (r *SQLRepository) ResolveAlert(ctx context.Context, tenantID string, alertID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE alerts
		SET is_resolved = 1, resolved_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, alertID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

package repository

// Schema definitions for Harrier storage.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    type TEXT NOT NULL,
    account_code TEXT NOT NULL,
    entity TEXT NOT NULL,
    amount REAL NOT NULL,
    debit_amount REAL,
    credit_amount REAL,
    timestamp TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(tenant_id, account_code);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, timestamp);
`

const schemaAnomalyResults = `
CREATE TABLE IF NOT EXISTS anomaly_results (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    anomaly_score REAL NOT NULL,
    is_anomaly INTEGER NOT NULL DEFAULT 0,
    detection_method TEXT NOT NULL,
    confidence_level REAL NOT NULL,
    anomaly_reasons TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_anomaly_results_tenant ON anomaly_results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_anomaly_results_tx ON anomaly_results(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_anomaly_results_flagged ON anomaly_results(tenant_id, is_anomaly);
`

const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS performance_snapshots (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    model_name TEXT NOT NULL,
    accuracy REAL NOT NULL,
    precision_score REAL NOT NULL,
    recall REAL NOT NULL,
    f1_score REAL NOT NULL,
    false_positive_rate REAL NOT NULL,
    false_negative_rate REAL NOT NULL,
    roc_auc REAL NOT NULL,
    pr_auc REAL NOT NULL,
    samples_processed INTEGER NOT NULL,
    anomalies_detected INTEGER NOT NULL,
    processing_time_ms INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tenant ON performance_snapshots(tenant_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_model ON performance_snapshots(tenant_id, model_name, timestamp);
`

const schemaDriftMetrics = `
CREATE TABLE IF NOT EXISTS drift_metrics (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    feature_name TEXT NOT NULL,
    drift_score REAL NOT NULL,
    drift_threshold REAL NOT NULL,
    is_drift_detected INTEGER NOT NULL DEFAULT 0,
    drift_type TEXT NOT NULL,
    statistical_test TEXT NOT NULL,
    p_value REAL NOT NULL,
    reference_period TEXT NOT NULL,
    current_period TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drift_tenant ON drift_metrics(tenant_id);
CREATE INDEX IF NOT EXISTS idx_drift_feature ON drift_metrics(tenant_id, feature_name, timestamp);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    model_name TEXT NOT NULL,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    current_value REAL NOT NULL,
    threshold_value REAL NOT NULL,
    description TEXT NOT NULL,
    recommendation TEXT,
    is_resolved INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_tenant ON alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alerts_unresolved ON alerts(tenant_id, is_resolved);
CREATE INDEX IF NOT EXISTS idx_alerts_model ON alerts(tenant_id, model_name, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaAnomalyResults,
		schemaSnapshots,
		schemaDriftMetrics,
		schemaAlerts,
	}
}

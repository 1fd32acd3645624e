package domain

import (
	"time"
)

// PerformanceSnapshot is one record per monitoring invocation.
// History is append-only and never mutated.
type PerformanceSnapshot struct {
	ID        string `json:"id"`
	ModelName string `json:"modelName"`

	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1Score      float64 `json:"f1Score"`
	FalsePosRate float64 `json:"falsePositiveRate"`
	FalseNegRate float64 `json:"falseNegativeRate"`
	TruePosRate  float64 `json:"truePositiveRate"`
	TrueNegRate  float64 `json:"trueNegativeRate"`
	ROCAUC       float64 `json:"rocAuc"`
	PRAUC        float64 `json:"prAuc"`

	SamplesProcessed  int   `json:"samplesProcessed"`
	AnomaliesDetected int   `json:"anomaliesDetected"`
	ProcessingTimeMs  int64 `json:"processingTimeMs"`

	Timestamp time.Time `json:"timestamp"`
}

// DriftType identifies which distributional property shifted.
type DriftType string

const (
	DriftMean         DriftType = "mean"
	DriftVariance     DriftType = "variance"
	DriftDistribution DriftType = "distribution"
)

// DriftMetric is one record per (feature, drift-type) pair per
// monitoring invocation. Append-only.
type DriftMetric struct {
	ID          string `json:"id"`
	FeatureName string `json:"featureName"`

	DriftScore      float64   `json:"driftScore"`
	DriftThreshold  float64   `json:"driftThreshold"`
	IsDriftDetected bool      `json:"isDriftDetected"`
	DriftType       DriftType `json:"driftType"`

	StatisticalTest string  `json:"statisticalTest"`
	PValue          float64 `json:"pValue"`

	ReferencePeriod string `json:"referencePeriod"`
	CurrentPeriod   string `json:"currentPeriod"`

	Timestamp time.Time `json:"timestamp"`
}

// AlertType classifies what tripped an alert.
type AlertType string

const (
	AlertPerformance AlertType = "performance"
	AlertDrift       AlertType = "drift"
	AlertAnomalyRate AlertType = "anomaly_rate"
	AlertError       AlertType = "error"
)

// AlertSeverity grades how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is raised when a metric or drift score crosses a threshold.
// Resolution is the only permitted mutation, performed by an external
// reviewer action.
type Alert struct {
	ID        string        `json:"id"`
	ModelName string        `json:"modelName"`
	Type      AlertType     `json:"type"`
	Severity  AlertSeverity `json:"severity"`

	MetricName     string  `json:"metricName"`
	CurrentValue   float64 `json:"currentValue"`
	ThresholdValue float64 `json:"thresholdValue"`

	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`

	IsResolved bool       `json:"isResolved"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// HealthStatus summarizes recent model health.
type HealthStatus string

const (
	HealthNoData    HealthStatus = "no_data"
	HealthCritical  HealthStatus = "critical"
	HealthPoor      HealthStatus = "poor"
	HealthFair      HealthStatus = "fair"
	HealthGood      HealthStatus = "good"
	HealthExcellent HealthStatus = "excellent"
)

// HealthTrend reports the accuracy direction over recent snapshots.
type HealthTrend string

const (
	TrendImproving HealthTrend = "improving"
	TrendDeclining HealthTrend = "declining"
	TrendStable    HealthTrend = "stable"
)

// HealthReport aggregates snapshot and alert history within a window.
type HealthReport struct {
	ModelName       string       `json:"modelName"`
	Status          HealthStatus `json:"status"`
	Trend           HealthTrend  `json:"trend"`
	Window          string       `json:"window"`
	SnapshotCount   int          `json:"snapshotCount"`
	ActiveAlerts    int          `json:"activeAlerts"`
	LatestAccuracy  float64      `json:"latestAccuracy"`
	LatestPrecision float64      `json:"latestPrecision"`
	LatestRecall    float64      `json:"latestRecall"`
	Recommendations []string     `json:"recommendations"`
	GeneratedAt     time.Time    `json:"generatedAt"`
}

package domain

import (
	"time"
)

// EnsembleMethod is the rule for combining per-model verdicts.
type EnsembleMethod string

const (
	// EnsembleVoting flags a record when a strict majority of live
	// models flag it; ties resolve to normal.
	EnsembleVoting EnsembleMethod = "voting"

	// EnsembleWeighted weights each model's vote and score by its
	// stored F1 (0.5 when unknown); flags when the weighted anomalous
	// vote fraction exceeds 0.5.
	EnsembleWeighted EnsembleMethod = "weighted"

	// EnsembleConsensus flags only when every live model agrees.
	// Strictly more conservative than voting.
	EnsembleConsensus EnsembleMethod = "consensus"
)

// AnomalyResult is one verdict per transaction, created once per
// detection run and never mutated. One-to-one with the input record.
type AnomalyResult struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	TransactionID string `json:"transactionId"`

	// AnomalyScore is real-valued; higher magnitude means more
	// anomalous. Sign and scale depend on the ensemble method and are
	// not normalized to [0,1].
	AnomalyScore float64 `json:"anomalyScore"`

	IsAnomaly bool `json:"isAnomaly"`

	// DetectionMethod records which ensemble strategy produced the verdict.
	DetectionMethod EnsembleMethod `json:"detectionMethod"`

	// ConfidenceLevel is min(|AnomalyScore|, 1).
	ConfidenceLevel float64 `json:"confidenceLevel"`

	// AnomalyReasons is an ordered, never-empty list of short
	// human-readable diagnostics for this record.
	AnomalyReasons []string `json:"anomalyReasons"`

	Timestamp time.Time `json:"timestamp"`
}

// ModelMetrics describes one scoring model's training outcome.
type ModelMetrics struct {
	ModelName       string    `json:"modelName"`
	Algorithm       string    `json:"algorithm"`
	Accuracy        float64   `json:"accuracy"`
	Precision       float64   `json:"precision"`
	Recall          float64   `json:"recall"`
	F1Score         float64   `json:"f1Score"`
	FalsePosRate    float64   `json:"falsePositiveRate"`
	AnomalyRate     float64   `json:"anomalyRate"`
	TrainingSamples int       `json:"trainingSamples"`
	LabelsProvided  bool      `json:"labelsProvided"`
	TrainedAt       time.Time `json:"trainedAt"`
}

// Labels for supervised evaluation follow the {-1, +1} convention:
// -1 marks an anomalous record, +1 a normal one.
const (
	LabelAnomaly = -1
	LabelNormal  = 1
)

// Package monitor tracks the health of the scoring models: performance
// metrics against ground truth, statistical drift between feature
// distributions, and threshold-based alerting.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	// ErrLengthMismatch is returned when predictions and labels differ
	// in length.
	ErrLengthMismatch = errors.New("monitor: predictions and labels length mismatch")

	// ErrAlertNotFound is returned when resolving an unknown alert.
	ErrAlertNotFound = errors.New("monitor: alert not found")
)

// Monitor owns append-only snapshot and alert histories as explicit
// instance state. Appends are guarded internally; histories are never
// mutated apart from alert resolution.
type Monitor struct {
	mu        sync.Mutex
	cfg       domain.MonitorConfig
	snapshots map[string][]domain.PerformanceSnapshot
	alerts    []*domain.Alert
}

// New creates a Monitor, filling unset thresholds with defaults.
func New(cfg domain.MonitorConfig) *Monitor {
	def := domain.DefaultConfig().Monitor
	if cfg.AccuracyWarn <= 0 {
		cfg.AccuracyWarn = def.AccuracyWarn
	}
	if cfg.AccuracyHigh <= 0 {
		cfg.AccuracyHigh = def.AccuracyHigh
	}
	if cfg.PrecisionWarn <= 0 {
		cfg.PrecisionWarn = def.PrecisionWarn
	}
	if cfg.RecallWarn <= 0 {
		cfg.RecallWarn = def.RecallWarn
	}
	if cfg.AnomalyRateMax <= 0 {
		cfg.AnomalyRateMax = def.AnomalyRateMax
	}
	if cfg.MeanDriftLimit <= 0 {
		cfg.MeanDriftLimit = def.MeanDriftLimit
	}
	if cfg.VarianceLogLimit <= 0 {
		cfg.VarianceLogLimit = def.VarianceLogLimit
	}
	if cfg.KSStatisticLimit <= 0 {
		cfg.KSStatisticLimit = def.KSStatisticLimit
	}
	if cfg.SignificanceLevel <= 0 {
		cfg.SignificanceLevel = def.SignificanceLevel
	}
	return &Monitor{
		cfg:       cfg,
		snapshots: make(map[string][]domain.PerformanceSnapshot),
	}
}

// RecordPerformance computes the full metric set for one batch of
// predictions against ground truth, appends the snapshot to the
// model's history and raises any threshold alerts. Predictions and
// labels follow the {-1, +1} convention with -1 marking an anomaly.
func (m *Monitor) RecordPerformance(modelName string, predictions, trueLabels []int, processingTimeMs int64) (*domain.PerformanceSnapshot, []domain.Alert, error) {
	if len(predictions) != len(trueLabels) {
		return nil, nil, ErrLengthMismatch
	}

	snap := computeSnapshot(modelName, predictions, trueLabels, processingTimeMs)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[modelName] = append(m.snapshots[modelName], *snap)
	raised := m.checkPerformance(snap)

	slog.Info("performance recorded",
		"model", modelName,
		"accuracy", snap.Accuracy,
		"f1", snap.F1Score,
		"samples", snap.SamplesProcessed,
		"alerts_raised", len(raised),
	)
	return snap, raised, nil
}

// computeSnapshot derives the confusion-matrix metric set. ROC-AUC and
// PR-AUC are trapezoid areas through the classifier's single operating
// point, which is all binary predictions support.
func computeSnapshot(modelName string, predictions, trueLabels []int, processingTimeMs int64) *domain.PerformanceSnapshot {
	var tp, fp, tn, fn float64
	anomalies := 0
	for i, p := range predictions {
		predicted := p == domain.LabelAnomaly
		actual := trueLabels[i] == domain.LabelAnomaly
		if predicted {
			anomalies++
		}
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && !actual:
			tn++
		default:
			fn++
		}
	}

	snap := &domain.PerformanceSnapshot{
		ID:                uuid.New().String(),
		ModelName:         modelName,
		SamplesProcessed:  len(predictions),
		AnomaliesDetected: anomalies,
		ProcessingTimeMs:  processingTimeMs,
		Timestamp:         time.Now().UTC(),
	}

	total := tp + fp + tn + fn
	if total == 0 {
		return snap
	}
	snap.Accuracy = (tp + tn) / total
	if tp+fp > 0 {
		snap.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		snap.Recall = tp / (tp + fn)
		snap.TruePosRate = snap.Recall
		snap.FalseNegRate = fn / (tp + fn)
	}
	if fp+tn > 0 {
		snap.FalsePosRate = fp / (fp + tn)
		snap.TrueNegRate = tn / (fp + tn)
	}
	if snap.Precision+snap.Recall > 0 {
		snap.F1Score = 2 * snap.Precision * snap.Recall / (snap.Precision + snap.Recall)
	}

	snap.ROCAUC = (1 + snap.TruePosRate - snap.FalsePosRate) / 2
	prevalence := (tp + fn) / total
	snap.PRAUC = snap.Recall*(1+snap.Precision)/2 + (1-snap.Recall)*(snap.Precision+prevalence)/2
	return snap
}

// DetectDrift compares reference and current distributions for each
// named feature present in both tables, running the mean, variance and
// distribution tests independently. Every drift-positive metric raises
// an alert: high severity above a drift score of 1, medium otherwise.
func (m *Monitor) DetectDrift(reference, current *domain.FeatureTable, featureNames []string, refPeriod, curPeriod string) ([]domain.DriftMetric, []domain.Alert, error) {
	if reference == nil || current == nil || reference.Len() == 0 || current.Len() == 0 {
		return nil, nil, errors.New("monitor: reference and current tables are required")
	}
	if refPeriod == "" {
		refPeriod = "reference"
	}
	if curPeriod == "" {
		curPeriod = "current"
	}

	now := time.Now().UTC()
	var metrics []domain.DriftMetric
	for _, name := range featureNames {
		if !reference.HasColumn(name) || !current.HasColumn(name) {
			continue
		}
		ref := reference.Column(name)
		cur := current.Column(name)

		meanScore, meanP := welchT(ref, cur)
		varScore, varP := fTest(ref, cur)
		ksStat, ksP := ksTest(ref, cur)

		metrics = append(metrics,
			domain.DriftMetric{
				ID:              uuid.New().String(),
				FeatureName:     name,
				DriftScore:      meanScore,
				DriftThreshold:  m.cfg.MeanDriftLimit,
				IsDriftDetected: meanScore > m.cfg.MeanDriftLimit || meanP < m.cfg.SignificanceLevel,
				DriftType:       domain.DriftMean,
				StatisticalTest: "welch_t_test",
				PValue:          meanP,
				ReferencePeriod: refPeriod,
				CurrentPeriod:   curPeriod,
				Timestamp:       now,
			},
			domain.DriftMetric{
				ID:              uuid.New().String(),
				FeatureName:     name,
				DriftScore:      varScore,
				DriftThreshold:  m.cfg.VarianceLogLimit,
				IsDriftDetected: varScore > m.cfg.VarianceLogLimit || varP < m.cfg.SignificanceLevel,
				DriftType:       domain.DriftVariance,
				StatisticalTest: "f_test",
				PValue:          varP,
				ReferencePeriod: refPeriod,
				CurrentPeriod:   curPeriod,
				Timestamp:       now,
			},
			domain.DriftMetric{
				ID:              uuid.New().String(),
				FeatureName:     name,
				DriftScore:      ksStat,
				DriftThreshold:  m.cfg.KSStatisticLimit,
				IsDriftDetected: ksStat > m.cfg.KSStatisticLimit || ksP < m.cfg.SignificanceLevel,
				DriftType:       domain.DriftDistribution,
				StatisticalTest: "kolmogorov_smirnov",
				PValue:          ksP,
				ReferencePeriod: refPeriod,
				CurrentPeriod:   curPeriod,
				Timestamp:       now,
			},
		)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var raised []domain.Alert
	for i := range metrics {
		dm := &metrics[i]
		if !dm.IsDriftDetected {
			continue
		}
		severity := domain.SeverityMedium
		if dm.DriftScore > 1.0 {
			severity = domain.SeverityHigh
		}
		raised = append(raised, m.raise(domain.Alert{
			Type:           domain.AlertDrift,
			Severity:       severity,
			MetricName:     fmt.Sprintf("%s_%s_drift", dm.FeatureName, dm.DriftType),
			CurrentValue:   dm.DriftScore,
			ThresholdValue: dm.DriftThreshold,
			Description:    fmt.Sprintf("%s drift detected on feature %q (%s, p=%.4f)", dm.DriftType, dm.FeatureName, dm.StatisticalTest, dm.PValue),
			Recommendation: "investigate upstream data changes and consider retraining on recent batches",
		}))
	}

	slog.Info("drift check completed",
		"features", len(featureNames),
		"metrics", len(metrics),
		"alerts_raised", len(raised),
	)
	return metrics, raised, nil
}

// ResolveAlert marks an alert resolved. This is the only permitted
// mutation of monitoring history and is performed on behalf of an
// external reviewer.
func (m *Monitor) ResolveAlert(alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == alertID {
			if !a.IsResolved {
				now := time.Now().UTC()
				a.IsResolved = true
				a.ResolvedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
}

// Alerts returns a copy of the alert history, optionally only
// unresolved entries.
func (m *Monitor) Alerts(unresolvedOnly bool) []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if unresolvedOnly && a.IsResolved {
			continue
		}
		out = append(out, *a)
	}
	return out
}

// Snapshots returns a copy of one model's snapshot history.
func (m *Monitor) Snapshots(modelName string) []domain.PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PerformanceSnapshot(nil), m.snapshots[modelName]...)
}

package monitor

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
)

// trendThreshold is the accuracy delta beyond which the trend is
// reported as improving or declining.
const trendThreshold = 0.05

// HealthReport aggregates one model's snapshot and alert history
// within the window into an overall status, a trend and free-text
// recommendations. With zero snapshots in the window the status is
// no_data.
func (m *Monitor) HealthReport(modelName string, window time.Duration) *domain.HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-window)

	report := &domain.HealthReport{
		ModelName:   modelName,
		Window:      window.String(),
		GeneratedAt: now,
	}

	var inWindow []domain.PerformanceSnapshot
	for _, s := range m.snapshots[modelName] {
		if !s.Timestamp.Before(cutoff) {
			inWindow = append(inWindow, s)
		}
	}
	report.SnapshotCount = len(inWindow)

	var hasCritical, hasHigh bool
	for _, a := range m.alerts {
		if a.ModelName != modelName || a.IsResolved || a.CreatedAt.Before(cutoff) {
			continue
		}
		report.ActiveAlerts++
		switch a.Severity {
		case domain.SeverityCritical:
			hasCritical = true
		case domain.SeverityHigh:
			hasHigh = true
		}
	}

	if len(inWindow) == 0 {
		report.Status = domain.HealthNoData
		report.Trend = domain.TrendStable
		report.Recommendations = []string{"no monitoring data in window; record performance after the next labeled batch"}
		return report
	}

	latest := inWindow[len(inWindow)-1]
	report.LatestAccuracy = latest.Accuracy
	report.LatestPrecision = latest.Precision
	report.LatestRecall = latest.Recall

	// Severity precedence first, then metric thresholds.
	switch {
	case hasCritical:
		report.Status = domain.HealthCritical
	case hasHigh:
		report.Status = domain.HealthPoor
	case latest.Accuracy < 0.7 || latest.Precision < 0.7 || latest.Recall < 0.7:
		report.Status = domain.HealthPoor
	case latest.Accuracy < 0.8:
		report.Status = domain.HealthFair
	case latest.Accuracy >= 0.9 && latest.Precision >= 0.8 && latest.Recall >= 0.8:
		report.Status = domain.HealthExcellent
	default:
		report.Status = domain.HealthGood
	}

	report.Trend = accuracyTrend(inWindow)
	report.Recommendations = m.recommendations(report, latest)
	return report
}

// accuracyTrend compares the mean accuracy of the last three snapshots
// to the mean of the earlier ones.
func accuracyTrend(snaps []domain.PerformanceSnapshot) domain.HealthTrend {
	if len(snaps) < 4 {
		return domain.TrendStable
	}
	split := len(snaps) - 3
	earlier := make([]float64, 0, split)
	recent := make([]float64, 0, 3)
	for i, s := range snaps {
		if i < split {
			earlier = append(earlier, s.Accuracy)
		} else {
			recent = append(recent, s.Accuracy)
		}
	}
	delta := stat.Mean(recent, nil) - stat.Mean(earlier, nil)
	switch {
	case delta > trendThreshold:
		return domain.TrendImproving
	case delta < -trendThreshold:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func (m *Monitor) recommendations(report *domain.HealthReport, latest domain.PerformanceSnapshot) []string {
	var recs []string
	if report.Status == domain.HealthCritical {
		recs = append(recs, "critical alerts are active; pause automated actions until resolved")
	}
	if latest.Accuracy < m.cfg.AccuracyWarn {
		recs = append(recs, fmt.Sprintf("accuracy %.3f is below %.2f; retrain on recent labeled data", latest.Accuracy, m.cfg.AccuracyWarn))
	}
	if latest.Precision < m.cfg.PrecisionWarn {
		recs = append(recs, fmt.Sprintf("precision %.3f is below %.2f; review false positives", latest.Precision, m.cfg.PrecisionWarn))
	}
	if latest.Recall < m.cfg.RecallWarn {
		recs = append(recs, fmt.Sprintf("recall %.3f is below %.2f; review missed anomalies", latest.Recall, m.cfg.RecallWarn))
	}
	if report.Trend == domain.TrendDeclining {
		recs = append(recs, "accuracy is trending down; schedule a drift check against the training reference")
	}
	if len(recs) == 0 {
		recs = append(recs, "model is healthy; no action required")
	}
	return recs
}

package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// raise appends an alert to the history and returns a copy.
// Caller holds the lock.
func (m *Monitor) raise(a domain.Alert) domain.Alert {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	m.alerts = append(m.alerts, &a)
	return a
}

// checkPerformance evaluates a snapshot against the severity bands and
// raises one alert per breached metric. Caller holds the lock.
func (m *Monitor) checkPerformance(snap *domain.PerformanceSnapshot) []domain.Alert {
	var raised []domain.Alert

	if snap.Accuracy < m.cfg.AccuracyWarn {
		severity := domain.SeverityMedium
		switch {
		case snap.Accuracy < 0.5:
			severity = domain.SeverityCritical
		case snap.Accuracy < m.cfg.AccuracyHigh:
			severity = domain.SeverityHigh
		}
		raised = append(raised, m.raise(domain.Alert{
			ModelName:      snap.ModelName,
			Type:           domain.AlertPerformance,
			Severity:       severity,
			MetricName:     "accuracy",
			CurrentValue:   snap.Accuracy,
			ThresholdValue: m.cfg.AccuracyWarn,
			Description:    fmt.Sprintf("model %s accuracy dropped to %.3f", snap.ModelName, snap.Accuracy),
			Recommendation: "retrain the model with recent labeled batches",
		}))
	}

	if snap.Precision < m.cfg.PrecisionWarn {
		raised = append(raised, m.raise(domain.Alert{
			ModelName:      snap.ModelName,
			Type:           domain.AlertPerformance,
			Severity:       domain.SeverityMedium,
			MetricName:     "precision",
			CurrentValue:   snap.Precision,
			ThresholdValue: m.cfg.PrecisionWarn,
			Description:    fmt.Sprintf("model %s precision dropped to %.3f", snap.ModelName, snap.Precision),
			Recommendation: "review flagged transactions for false positives and tighten contamination",
		}))
	}

	if snap.Recall < m.cfg.RecallWarn {
		raised = append(raised, m.raise(domain.Alert{
			ModelName:      snap.ModelName,
			Type:           domain.AlertPerformance,
			Severity:       domain.SeverityMedium,
			MetricName:     "recall",
			CurrentValue:   snap.Recall,
			ThresholdValue: m.cfg.RecallWarn,
			Description:    fmt.Sprintf("model %s recall dropped to %.3f", snap.ModelName, snap.Recall),
			Recommendation: "review missed anomalies and consider loosening detection thresholds",
		}))
	}

	if snap.SamplesProcessed > 0 {
		rate := float64(snap.AnomaliesDetected) / float64(snap.SamplesProcessed)
		if rate > m.cfg.AnomalyRateMax {
			severity := domain.SeverityMedium
			if rate > 2*m.cfg.AnomalyRateMax {
				severity = domain.SeverityHigh
			}
			raised = append(raised, m.raise(domain.Alert{
				ModelName:      snap.ModelName,
				Type:           domain.AlertAnomalyRate,
				Severity:       severity,
				MetricName:     "anomaly_rate",
				CurrentValue:   rate,
				ThresholdValue: m.cfg.AnomalyRateMax,
				Description:    fmt.Sprintf("model %s flagged %.1f%% of the batch", snap.ModelName, 100*rate),
				Recommendation: "check for upstream data issues before acting on this batch",
			}))
		}
	}

	return raised
}

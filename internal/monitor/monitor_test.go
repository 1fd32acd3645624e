package monitor

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestMonitor() *Monitor {
	return New(domain.DefaultConfig().Monitor)
}

func TestRecordPerformance(t *testing.T) {
	t.Run("Metrics", func(t *testing.T) {
		m := newTestMonitor()

		// 5 true anomalies; the model catches 4, misses 1, and raises 2
		// false positives.
		labels := make([]int, 20)
		preds := make([]int, 20)
		for i := range labels {
			labels[i] = domain.LabelNormal
			preds[i] = domain.LabelNormal
		}
		for i := 0; i < 5; i++ {
			labels[i] = domain.LabelAnomaly
		}
		for i := 0; i < 4; i++ {
			preds[i] = domain.LabelAnomaly
		}
		preds[5] = domain.LabelAnomaly
		preds[6] = domain.LabelAnomaly

		snap, alerts, err := m.RecordPerformance("iso-forest", preds, labels, 12)
		if err != nil {
			t.Fatalf("RecordPerformance failed: %v", err)
		}

		if math.Abs(snap.Accuracy-0.85) > 1e-9 {
			t.Errorf("accuracy = %.4f, want 0.85", snap.Accuracy)
		}
		if math.Abs(snap.Precision-4.0/6.0) > 1e-9 {
			t.Errorf("precision = %.4f, want %.4f", snap.Precision, 4.0/6.0)
		}
		if math.Abs(snap.Recall-0.8) > 1e-9 {
			t.Errorf("recall = %.4f, want 0.8", snap.Recall)
		}
		if math.Abs(snap.FalsePosRate-2.0/15.0) > 1e-9 {
			t.Errorf("false positive rate = %.4f, want %.4f", snap.FalsePosRate, 2.0/15.0)
		}
		if snap.SamplesProcessed != 20 || snap.AnomaliesDetected != 6 {
			t.Errorf("counts = %d/%d, want 20/6", snap.SamplesProcessed, snap.AnomaliesDetected)
		}
		if snap.ProcessingTimeMs != 12 {
			t.Errorf("processing time = %d, want 12", snap.ProcessingTimeMs)
		}

		// Accuracy 0.85 < 0.9, precision 0.667 < 0.8 and anomaly rate
		// 0.3 > 0.15 each raise an alert; recall sits exactly on the
		// threshold and stays quiet.
		if len(alerts) != 3 {
			t.Fatalf("expected 3 alerts, got %d: %+v", len(alerts), alerts)
		}
		for _, a := range alerts {
			if a.Severity != domain.SeverityMedium {
				t.Errorf("alert %s severity = %s, want medium", a.MetricName, a.Severity)
			}
			if a.ModelName != "iso-forest" {
				t.Errorf("alert %s model = %s", a.MetricName, a.ModelName)
			}
		}

		if got := len(m.Snapshots("iso-forest")); got != 1 {
			t.Errorf("expected 1 snapshot in history, got %d", got)
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		m := newTestMonitor()
		_, _, err := m.RecordPerformance("m", []int{1, 1}, []int{1}, 0)
		if !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got: %v", err)
		}
	})

	t.Run("CriticalSeverity", func(t *testing.T) {
		m := newTestMonitor()

		// Every prediction wrong: accuracy 0 crosses the critical band.
		labels := []int{-1, -1, -1, -1, -1, 1, 1, 1, 1, 1}
		preds := []int{1, 1, 1, 1, 1, -1, -1, -1, -1, -1}

		snap, alerts, err := m.RecordPerformance("m", preds, labels, 0)
		if err != nil {
			t.Fatalf("RecordPerformance failed: %v", err)
		}
		if snap.Accuracy != 0 {
			t.Errorf("accuracy = %.4f, want 0", snap.Accuracy)
		}

		var accSeverity domain.AlertSeverity
		for _, a := range alerts {
			if a.MetricName == "accuracy" {
				accSeverity = a.Severity
			}
		}
		if accSeverity != domain.SeverityCritical {
			t.Errorf("accuracy alert severity = %s, want critical", accSeverity)
		}
	})
}

// driftTables builds a single-column reference table and a current
// table shifted by delta.
func driftTables(n int, delta float64, seed int64) (*domain.FeatureTable, *domain.FeatureTable) {
	rng := rand.New(rand.NewSource(seed))
	refRows := make([][]float64, n)
	curRows := make([][]float64, n)
	for i := 0; i < n; i++ {
		v := rng.NormFloat64()
		refRows[i] = []float64{v}
		curRows[i] = []float64{rng.NormFloat64() + delta}
	}
	return domain.NewFeatureTable([]string{"amount"}, refRows),
		domain.NewFeatureTable([]string{"amount"}, curRows)
}

func TestDetectDrift(t *testing.T) {
	t.Run("ShiftedMean", func(t *testing.T) {
		m := newTestMonitor()
		ref, cur := driftTables(200, 3.0, 42)

		metrics, alerts, err := m.DetectDrift(ref, cur, []string{"amount"}, "march", "april")
		if err != nil {
			t.Fatalf("DetectDrift failed: %v", err)
		}
		if len(metrics) != 3 {
			t.Fatalf("expected 3 metrics for one feature, got %d", len(metrics))
		}

		var meanMetric, distMetric *domain.DriftMetric
		for i := range metrics {
			switch metrics[i].DriftType {
			case domain.DriftMean:
				meanMetric = &metrics[i]
			case domain.DriftDistribution:
				distMetric = &metrics[i]
			}
		}
		if meanMetric == nil || distMetric == nil {
			t.Fatal("missing mean or distribution metric")
		}

		if !meanMetric.IsDriftDetected {
			t.Error("expected mean drift to be detected for a 3-sigma shift")
		}
		if meanMetric.DriftScore < 2 {
			t.Errorf("mean drift score = %.3f, want > 2", meanMetric.DriftScore)
		}
		if meanMetric.PValue >= 0.05 {
			t.Errorf("mean drift p-value = %.4f, want < 0.05", meanMetric.PValue)
		}
		if meanMetric.ReferencePeriod != "march" || meanMetric.CurrentPeriod != "april" {
			t.Errorf("periods = %s/%s", meanMetric.ReferencePeriod, meanMetric.CurrentPeriod)
		}

		if !distMetric.IsDriftDetected {
			t.Error("expected distribution drift to be detected")
		}

		if len(alerts) < 2 {
			t.Fatalf("expected drift alerts, got %d", len(alerts))
		}
		sawHigh := false
		for _, a := range alerts {
			if a.Type != domain.AlertDrift {
				t.Errorf("alert type = %s, want drift", a.Type)
			}
			if a.Severity == domain.SeverityHigh {
				sawHigh = true
			}
		}
		if !sawHigh {
			t.Error("expected a high-severity alert for a drift score above 1")
		}
	})

	t.Run("NoDrift", func(t *testing.T) {
		m := newTestMonitor()
		ref, _ := driftTables(200, 0, 7)

		metrics, alerts, err := m.DetectDrift(ref, ref, []string{"amount"}, "", "")
		if err != nil {
			t.Fatalf("DetectDrift failed: %v", err)
		}
		for _, dm := range metrics {
			if dm.IsDriftDetected {
				t.Errorf("%s drift detected on identical samples (score %.4f, p %.4f)", dm.DriftType, dm.DriftScore, dm.PValue)
			}
		}
		if len(alerts) != 0 {
			t.Errorf("expected no alerts, got %d", len(alerts))
		}
	})

	t.Run("MissingColumnSkipped", func(t *testing.T) {
		m := newTestMonitor()
		ref, cur := driftTables(50, 0, 3)

		metrics, _, err := m.DetectDrift(ref, cur, []string{"amount", "ghost"}, "", "")
		if err != nil {
			t.Fatalf("DetectDrift failed: %v", err)
		}
		if len(metrics) != 3 {
			t.Errorf("expected 3 metrics (ghost skipped), got %d", len(metrics))
		}
	})

	t.Run("RequiresBothTables", func(t *testing.T) {
		m := newTestMonitor()
		ref, _ := driftTables(10, 0, 1)
		if _, _, err := m.DetectDrift(ref, nil, []string{"amount"}, "", ""); err == nil {
			t.Error("expected error for nil current table")
		}
		if _, _, err := m.DetectDrift(nil, ref, []string{"amount"}, "", ""); err == nil {
			t.Error("expected error for nil reference table")
		}
	})
}

func TestStatTestSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	a := make([]float64, 80)
	b := make([]float64, 120)
	for i := range a {
		a[i] = rng.NormFloat64() * 2
	}
	for i := range b {
		b[i] = rng.NormFloat64() + 0.5
	}

	t.Run("WelchT", func(t *testing.T) {
		s1, p1 := welchT(a, b)
		s2, p2 := welchT(b, a)
		if math.Abs(s1-s2) > 1e-9 || math.Abs(p1-p2) > 1e-9 {
			t.Errorf("welchT not symmetric: (%.6f, %.6f) vs (%.6f, %.6f)", s1, p1, s2, p2)
		}
	})

	t.Run("FTest", func(t *testing.T) {
		s1, p1 := fTest(a, b)
		s2, p2 := fTest(b, a)
		if math.Abs(s1-s2) > 1e-9 || math.Abs(p1-p2) > 1e-9 {
			t.Errorf("fTest not symmetric: (%.6f, %.6f) vs (%.6f, %.6f)", s1, p1, s2, p2)
		}
	})

	t.Run("KS", func(t *testing.T) {
		s1, p1 := ksTest(a, b)
		s2, p2 := ksTest(b, a)
		if math.Abs(s1-s2) > 1e-9 || math.Abs(p1-p2) > 1e-9 {
			t.Errorf("ksTest not symmetric: (%.6f, %.6f) vs (%.6f, %.6f)", s1, p1, s2, p2)
		}
	})
}

func TestResolveAlert(t *testing.T) {
	m := newTestMonitor()

	labels := []int{-1, -1, 1, 1, 1, 1, 1, 1, 1, 1}
	preds := []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	_, raised, err := m.RecordPerformance("m", preds, labels, 0)
	if err != nil {
		t.Fatalf("RecordPerformance failed: %v", err)
	}
	if len(raised) == 0 {
		t.Fatal("expected alerts to be raised")
	}

	id := raised[0].ID
	if err := m.ResolveAlert(id); err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}

	for _, a := range m.Alerts(true) {
		if a.ID == id {
			t.Error("resolved alert still listed as unresolved")
		}
	}

	found := false
	for _, a := range m.Alerts(false) {
		if a.ID == id {
			found = true
			if !a.IsResolved || a.ResolvedAt == nil {
				t.Error("expected alert to carry resolution state")
			}
		}
	}
	if !found {
		t.Error("resolved alert missing from full history")
	}

	if err := m.ResolveAlert("no-such-alert"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got: %v", err)
	}
}

func TestHealthReport(t *testing.T) {
	now := time.Now().UTC()

	snap := func(acc, prec, rec float64, at time.Time) domain.PerformanceSnapshot {
		return domain.PerformanceSnapshot{
			ID:        uuid.New().String(),
			ModelName: "m",
			Accuracy:  acc,
			Precision: prec,
			Recall:    rec,
			Timestamp: at,
		}
	}

	t.Run("NoData", func(t *testing.T) {
		m := newTestMonitor()
		report := m.HealthReport("ghost", time.Hour)
		if report.Status != domain.HealthNoData {
			t.Errorf("status = %s, want no_data", report.Status)
		}
		if report.Trend != domain.TrendStable {
			t.Errorf("trend = %s, want stable", report.Trend)
		}
		if len(report.Recommendations) == 0 {
			t.Error("expected a recommendation even without data")
		}
	})

	t.Run("StatusBands", func(t *testing.T) {
		cases := []struct {
			name           string
			acc, prec, rec float64
			want           domain.HealthStatus
		}{
			{"Excellent", 0.95, 0.90, 0.90, domain.HealthExcellent},
			{"Good", 0.85, 0.85, 0.85, domain.HealthGood},
			{"Fair", 0.75, 0.85, 0.85, domain.HealthFair},
			{"Poor", 0.60, 0.90, 0.90, domain.HealthPoor},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				m := newTestMonitor()
				m.snapshots["m"] = []domain.PerformanceSnapshot{snap(tc.acc, tc.prec, tc.rec, now)}

				report := m.HealthReport("m", time.Hour)
				if report.Status != tc.want {
					t.Errorf("status = %s, want %s", report.Status, tc.want)
				}
				if report.LatestAccuracy != tc.acc {
					t.Errorf("latest accuracy = %.2f, want %.2f", report.LatestAccuracy, tc.acc)
				}
			})
		}
	})

	t.Run("DecliningTrend", func(t *testing.T) {
		m := newTestMonitor()
		accs := []float64{0.95, 0.95, 0.80, 0.80, 0.80}
		for i, acc := range accs {
			m.snapshots["m"] = append(m.snapshots["m"], snap(acc, 0.9, 0.9, now.Add(time.Duration(i)*time.Minute)))
		}
		report := m.HealthReport("m", time.Hour)
		if report.Trend != domain.TrendDeclining {
			t.Errorf("trend = %s, want declining", report.Trend)
		}
		if report.SnapshotCount != 5 {
			t.Errorf("snapshot count = %d, want 5", report.SnapshotCount)
		}
	})

	t.Run("ImprovingTrend", func(t *testing.T) {
		m := newTestMonitor()
		accs := []float64{0.70, 0.70, 0.90, 0.90, 0.90}
		for i, acc := range accs {
			m.snapshots["m"] = append(m.snapshots["m"], snap(acc, 0.9, 0.9, now.Add(time.Duration(i)*time.Minute)))
		}
		report := m.HealthReport("m", time.Hour)
		if report.Trend != domain.TrendImproving {
			t.Errorf("trend = %s, want improving", report.Trend)
		}
	})

	t.Run("CriticalAlertOverridesMetrics", func(t *testing.T) {
		m := newTestMonitor()
		m.snapshots["m"] = []domain.PerformanceSnapshot{snap(0.95, 0.9, 0.9, now)}
		m.alerts = append(m.alerts, &domain.Alert{
			ID:        uuid.New().String(),
			ModelName: "m",
			Severity:  domain.SeverityCritical,
			CreatedAt: now,
		})

		report := m.HealthReport("m", time.Hour)
		if report.Status != domain.HealthCritical {
			t.Errorf("status = %s, want critical", report.Status)
		}
		if report.ActiveAlerts != 1 {
			t.Errorf("active alerts = %d, want 1", report.ActiveAlerts)
		}
	})

	t.Run("WindowExcludesOldSnapshots", func(t *testing.T) {
		m := newTestMonitor()
		m.snapshots["m"] = []domain.PerformanceSnapshot{snap(0.95, 0.9, 0.9, now.Add(-2*time.Hour))}

		report := m.HealthReport("m", time.Hour)
		if report.Status != domain.HealthNoData {
			t.Errorf("status = %s, want no_data outside the window", report.Status)
		}
	})
}

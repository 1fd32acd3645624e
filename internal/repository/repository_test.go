package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "harrier-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTransaction(id string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		TenantID:    "tenant-001",
		Amount:      1250.75,
		AccountCode: "4010",
		Entity:      "acme-retail",
		Type:        "payment",
		Timestamp:   ts,
		CreatedAt:   ts,
		Metadata:    map[string]interface{}{"source": "ledger-import"},
	}
}

func TestSaveAndGetTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	tx := sampleTransaction("tx-001", ts)
	credit := 1250.75
	tx.CreditAmount = &credit

	if err := repo.SaveTransaction(ctx, "tenant-001", tx); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "tenant-001", "tx-001")
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}

	if got.ID != tx.ID || got.AccountCode != tx.AccountCode || got.Entity != tx.Entity {
		t.Errorf("transaction fields mismatch: %+v", got)
	}
	if got.Amount != tx.Amount {
		t.Errorf("expected amount %v, got %v", tx.Amount, got.Amount)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, got.Timestamp)
	}
	if got.DebitAmount != nil {
		t.Errorf("expected nil debit amount, got %v", *got.DebitAmount)
	}
	if got.CreditAmount == nil || *got.CreditAmount != credit {
		t.Errorf("credit amount did not round-trip: %v", got.CreditAmount)
	}
	if got.Metadata["source"] != "ledger-import" {
		t.Errorf("metadata did not round-trip: %v", got.Metadata)
	}
}

func TestGetTransactionZeroTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := sampleTransaction("tx-no-ts", time.Now().UTC())
	tx.Timestamp = time.Time{}

	if err := repo.SaveTransaction(ctx, "tenant-001", tx); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}

	got, err := repo.GetTransaction(ctx, "tenant-001", "tx-no-ts")
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.HasTimestamp() {
		t.Errorf("expected zero timestamp to survive as unset, got %v", got.Timestamp)
	}
}

func TestTenantIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := sampleTransaction("tx-iso", time.Now().UTC())
	if err := repo.SaveTransaction(ctx, "tenant-a", tx); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}

	if _, err := repo.GetTransaction(ctx, "tenant-b", "tx-iso"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across tenants, got: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "tenant-a", "tx-iso"); err != nil {
		t.Errorf("expected owning tenant to read the record, got: %v", err)
	}
}

func TestRequiresTenantID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveTransaction(ctx, "", sampleTransaction("x", time.Now())); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SaveTransaction: expected ErrInvalidInput, got: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("GetTransaction: expected ErrInvalidInput, got: %v", err)
	}
	if err := repo.SaveAnomalyResults(ctx, "", []domain.AnomalyResult{{ID: "r"}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SaveAnomalyResults: expected ErrInvalidInput, got: %v", err)
	}
	if _, err := repo.ListAlerts(ctx, "", false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ListAlerts: expected ErrInvalidInput, got: %v", err)
	}
	if err := repo.ResolveAlert(ctx, "", "a"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ResolveAlert: expected ErrInvalidInput, got: %v", err)
	}
}

func TestGetTransactionsByAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-3 * time.Hour)
	for i := 0; i < 3; i++ {
		tx := sampleTransaction(uuid.New().String(), base.Add(time.Duration(i)*time.Hour))
		if err := repo.SaveTransaction(ctx, "tenant-001", tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
	}
	other := sampleTransaction("tx-other-account", base)
	other.AccountCode = "9999"
	if err := repo.SaveTransaction(ctx, "tenant-001", other); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}

	t.Run("FiltersByAccount", func(t *testing.T) {
		txs, err := repo.GetTransactionsByAccount(ctx, "tenant-001", "4010", base.Add(-time.Minute))
		if err != nil {
			t.Fatalf("GetTransactionsByAccount failed: %v", err)
		}
		if len(txs) != 3 {
			t.Fatalf("expected 3 transactions, got %d", len(txs))
		}
		for i := 1; i < len(txs); i++ {
			if txs[i].Timestamp.After(txs[i-1].Timestamp) {
				t.Error("expected newest-first ordering")
			}
		}
	})

	t.Run("SinceFilter", func(t *testing.T) {
		txs, err := repo.GetTransactionsByAccount(ctx, "tenant-001", "4010", base.Add(90*time.Minute))
		if err != nil {
			t.Fatalf("GetTransactionsByAccount failed: %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("expected 1 transaction after cutoff, got %d", len(txs))
		}
	})
}

func TestAnomalyResults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	results := []domain.AnomalyResult{
		{
			ID:              uuid.New().String(),
			TenantID:        "tenant-001",
			TransactionID:   "tx-100",
			AnomalyScore:    -0.42,
			IsAnomaly:       true,
			DetectionMethod: domain.EnsembleVoting,
			ConfidenceLevel: 0.42,
			AnomalyReasons:  []string{"unusual amount", "weekend transaction"},
			Timestamp:       ts,
		},
		{
			ID:              uuid.New().String(),
			TenantID:        "tenant-001",
			TransactionID:   "tx-101",
			AnomalyScore:    0.8,
			IsAnomaly:       false,
			DetectionMethod: domain.EnsembleVoting,
			ConfidenceLevel: 0.8,
			AnomalyReasons:  []string{"no significant deviation detected"},
			Timestamp:       ts,
		},
	}

	if err := repo.SaveAnomalyResults(ctx, "tenant-001", results); err != nil {
		t.Fatalf("SaveAnomalyResults failed: %v", err)
	}

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := repo.GetAnomalyResult(ctx, "tenant-001", "tx-100")
		if err != nil {
			t.Fatalf("GetAnomalyResult failed: %v", err)
		}
		if !got.IsAnomaly || got.AnomalyScore != -0.42 {
			t.Errorf("verdict mismatch: %+v", got)
		}
		if got.DetectionMethod != domain.EnsembleVoting {
			t.Errorf("expected method voting, got %s", got.DetectionMethod)
		}
		if len(got.AnomalyReasons) != 2 || got.AnomalyReasons[0] != "unusual amount" {
			t.Errorf("reasons did not round-trip: %v", got.AnomalyReasons)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetAnomalyResult(ctx, "tenant-001", "tx-missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("EmptyBatchIsNoOp", func(t *testing.T) {
		if err := repo.SaveAnomalyResults(ctx, "tenant-001", nil); err != nil {
			t.Errorf("expected nil error for empty batch, got: %v", err)
		}
	})
}

func TestSnapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 3; i++ {
		snap := &domain.PerformanceSnapshot{
			ID:               uuid.New().String(),
			ModelName:        "isolation_forest",
			Accuracy:         0.9 + float64(i)*0.01,
			Precision:        0.85,
			Recall:           0.8,
			SamplesProcessed: 100,
			Timestamp:        base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveSnapshot(ctx, "tenant-001", snap); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	snaps, err := repo.ListSnapshots(ctx, "tenant-001", "isolation_forest", base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Timestamp.Before(snaps[i-1].Timestamp) {
			t.Error("expected oldest-first ordering")
		}
	}
	if snaps[0].Accuracy != 0.9 {
		t.Errorf("expected first accuracy 0.9, got %v", snaps[0].Accuracy)
	}
}

func TestSaveDriftMetrics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	metrics := []domain.DriftMetric{
		{
			ID:              uuid.New().String(),
			FeatureName:     "amount",
			DriftScore:      2.4,
			DriftThreshold:  2.0,
			IsDriftDetected: true,
			DriftType:       domain.DriftMean,
			StatisticalTest: "welch_t_test",
			PValue:          0.001,
			ReferencePeriod: "march",
			CurrentPeriod:   "april",
			Timestamp:       time.Now().UTC(),
		},
	}

	if err := repo.SaveDriftMetrics(ctx, "tenant-001", metrics); err != nil {
		t.Fatalf("SaveDriftMetrics failed: %v", err)
	}
	if err := repo.SaveDriftMetrics(ctx, "tenant-001", nil); err != nil {
		t.Errorf("expected nil error for empty batch, got: %v", err)
	}
}

func TestAlerts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	open := &domain.Alert{
		ID:             uuid.New().String(),
		ModelName:      "isolation_forest",
		Type:           domain.AlertPerformance,
		Severity:       domain.SeverityMedium,
		MetricName:     "accuracy",
		CurrentValue:   0.85,
		ThresholdValue: 0.9,
		Description:    "accuracy dropped",
		Recommendation: "retrain",
		CreatedAt:      now.Add(-time.Minute),
	}
	resolvedAt := now
	closed := &domain.Alert{
		ID:          uuid.New().String(),
		ModelName:   "isolation_forest",
		Type:        domain.AlertDrift,
		Severity:    domain.SeverityHigh,
		MetricName:  "amount_mean_drift",
		Description: "drift detected",
		IsResolved:  true,
		CreatedAt:   now.Add(-2 * time.Minute),
		ResolvedAt:  &resolvedAt,
	}

	for _, a := range []*domain.Alert{open, closed} {
		if err := repo.SaveAlert(ctx, "tenant-001", a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	t.Run("UnresolvedOnly", func(t *testing.T) {
		alerts, err := repo.ListAlerts(ctx, "tenant-001", true)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(alerts) != 1 || alerts[0].ID != open.ID {
			t.Errorf("expected only the open alert, got %d", len(alerts))
		}
	})

	t.Run("All", func(t *testing.T) {
		alerts, err := repo.ListAlerts(ctx, "tenant-001", false)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(alerts) != 2 {
			t.Fatalf("expected 2 alerts, got %d", len(alerts))
		}
		// Newest first.
		if alerts[0].ID != open.ID {
			t.Errorf("expected newest alert first, got %s", alerts[0].ID)
		}
		for _, a := range alerts {
			if a.ID == closed.ID && (!a.IsResolved || a.ResolvedAt == nil) {
				t.Error("resolution state did not round-trip")
			}
		}
	})

	t.Run("Resolve", func(t *testing.T) {
		if err := repo.ResolveAlert(ctx, "tenant-001", open.ID); err != nil {
			t.Fatalf("ResolveAlert failed: %v", err)
		}
		alerts, err := repo.ListAlerts(ctx, "tenant-001", true)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(alerts) != 0 {
			t.Errorf("expected no unresolved alerts, got %d", len(alerts))
		}
	})

	t.Run("ResolveUnknown", func(t *testing.T) {
		if err := repo.ResolveAlert(ctx, "tenant-001", "no-such-alert"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "mysql"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	cases := []struct {
		driver string
		in     string
		want   string
	}{
		{"sqlite", "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres", "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres", "INSERT INTO t VALUES (?, ?, ?)", "INSERT INTO t VALUES ($1, $2, $3)"},
	}

	for _, tc := range cases {
		r := &SQLRepository{driver: tc.driver}
		if got := r.rebind(tc.in); got != tc.want {
			t.Errorf("rebind(%s, %q) = %q, want %q", tc.driver, tc.in, got, tc.want)
		}
	}
}

// Package worker provides async batch processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/detector"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/monitor"
)

var tracer = otel.Tracer("harrier-worker")

// Worker consumes ingested batches from the EventBus and runs them
// through the detection pipeline: sort, feature build, ensemble
// detection, persistence and alerting.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	engineer *features.Engineer
	ensemble *detector.Ensemble
	monitor  *monitor.Monitor
	method   domain.EnsembleMethod

	// references holds the first feature table seen per tenant as the
	// drift baseline for later batches.
	refMu      sync.Mutex
	references map[string]*domain.FeatureTable

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string

	// Method is the ensemble combination strategy for this worker.
	Method domain.EnsembleMethod
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engineer *features.Engineer, ensemble *detector.Ensemble, mon *monitor.Monitor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		engineer: engineer,
		ensemble: ensemble,
		monitor:  mon,
		method:   domain.EnsembleVoting,

		references: make(map[string]*domain.FeatureTable),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing batches for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.Method != "" {
		w.method = cfg.Method
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
		"method", w.method,
	)

	return nil
}

// startTenantWorker subscribes one tenant to the batch topic.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchIngested, func(ctx context.Context, msg *domain.Message) error {
		w.wg.Add(1)
		defer w.wg.Done()
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchIngested,
	)

	return nil
}

// BatchMessage is the message payload for batch processing. Labels are
// optional ground truth aligned with Transactions, {-1, +1} with -1
// marking an anomaly; when present the batch feeds performance
// monitoring after detection.
type BatchMessage struct {
	BatchID      string               `json:"batchId"`
	TenantID     string               `json:"tenantId"`
	Transactions []domain.Transaction `json:"transactions"`
	Labels       []int                `json:"labels,omitempty"`
}

// processBatch runs one batch through the full pipeline.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "worker.processBatch",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID),
			attribute.String("message_id", msg.ID),
		),
	)
	defer span.End()

	var batch BatchMessage
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if batch.TenantID != "" {
		tenantID = batch.TenantID
	}
	span.SetAttributes(attribute.Int("batch_size", len(batch.Transactions)))

	slog.Debug("processing batch",
		"batch_id", batch.BatchID,
		"tenant_id", tenantID,
		"size", len(batch.Transactions),
	)

	// 1. Sort by timestamp so window features see time order. Labels
	// ride along so they stay aligned with their transactions.
	sortBatch(batch.Transactions, batch.Labels)

	// 2. Build features.
	_, featSpan := tracer.Start(ctx, "worker.buildFeatures")
	ft, err := w.engineer.BuildFeatures(batch.Transactions)
	featSpan.End()
	if err != nil {
		slog.Error("feature build failed",
			"batch_id", batch.BatchID,
			"error", err,
		)
		return err
	}

	// 3. Detect anomalies.
	_, detSpan := tracer.Start(ctx, "worker.detect")
	results, err := w.ensemble.Detect(ft, w.method)
	detSpan.End()
	if err != nil {
		slog.Error("detection failed",
			"batch_id", batch.BatchID,
			"error", err,
		)
		return err
	}
	for i := range results {
		results[i].TenantID = tenantID
	}

	// 4. Persist transactions and verdicts.
	if w.repo != nil {
		for i := range batch.Transactions {
			if err := w.repo.SaveTransaction(ctx, tenantID, &batch.Transactions[i]); err != nil {
				slog.Error("failed to save transaction",
					"tx_id", batch.Transactions[i].ID,
					"error", err,
				)
			}
		}
		if err := w.repo.SaveAnomalyResults(ctx, tenantID, results); err != nil {
			slog.Error("failed to save anomaly results",
				"batch_id", batch.BatchID,
				"error", err,
			)
		}
	}

	// 5. Update account profiles for cross-batch context.
	w.updateProfiles(ctx, tenantID, batch.Transactions)

	// 6. Publish flagged verdicts.
	anomalies := 0
	for i := range results {
		if !results[i].IsAnomaly {
			continue
		}
		anomalies++
		payload, _ := json.Marshal(results[i])
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAnomalyDetected, payload); err != nil {
			slog.Error("failed to publish anomaly",
				"tx_id", results[i].TransactionID,
				"error", err,
			)
		}
	}

	// 7. Feed the monitor: performance against labels when present,
	// drift against the tenant's stored reference table.
	w.monitorBatch(ctx, tenantID, &batch, ft, results, time.Since(start).Milliseconds())

	slog.Info("batch processed",
		"batch_id", batch.BatchID,
		"tenant_id", tenantID,
		"size", len(batch.Transactions),
		"anomalies", anomalies,
		"method", w.method,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// sortBatch orders transactions by timestamp ascending, carrying labels
// along when they are aligned with the transactions. Misaligned labels
// are left untouched; monitorBatch ignores them in that case.
func sortBatch(txs []domain.Transaction, labels []int) {
	if len(labels) != len(txs) {
		domain.SortByTimestamp(txs)
		return
	}
	idx := make([]int, len(txs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return txs[idx[i]].Timestamp.Before(txs[idx[j]].Timestamp)
	})
	sortedTxs := make([]domain.Transaction, len(txs))
	sortedLabels := make([]int, len(labels))
	for i, j := range idx {
		sortedTxs[i] = txs[j]
		sortedLabels[i] = labels[j]
	}
	copy(txs, sortedTxs)
	copy(labels, sortedLabels)
}

// monitorBatch records ensemble performance when the batch carries
// ground-truth labels and checks feature drift against the first table
// seen for the tenant. Alerts raised by either check are published and
// persisted.
func (w *Worker) monitorBatch(ctx context.Context, tenantID string, batch *BatchMessage, ft *domain.FeatureTable, results []domain.AnomalyResult, elapsedMs int64) {
	if w.monitor == nil {
		return
	}

	var alerts []domain.Alert

	if len(batch.Labels) > 0 && len(batch.Labels) == len(results) {
		preds := make([]int, len(results))
		for i := range results {
			if results[i].IsAnomaly {
				preds[i] = domain.LabelAnomaly
			} else {
				preds[i] = domain.LabelNormal
			}
		}
		snap, perfAlerts, err := w.monitor.RecordPerformance(string(w.method), preds, batch.Labels, elapsedMs)
		if err != nil {
			slog.Error("performance recording failed",
				"batch_id", batch.BatchID,
				"error", err,
			)
		} else {
			alerts = append(alerts, perfAlerts...)
			if w.repo != nil && snap != nil {
				if err := w.repo.SaveSnapshot(ctx, tenantID, snap); err != nil {
					slog.Error("failed to save performance snapshot",
						"batch_id", batch.BatchID,
						"error", err,
					)
				}
			}
		}
	}

	w.refMu.Lock()
	ref, ok := w.references[tenantID]
	if !ok {
		w.references[tenantID] = ft
	}
	w.refMu.Unlock()

	if ok {
		metrics, driftAlerts, err := w.monitor.DetectDrift(ref, ft, ref.Columns, "reference", batch.BatchID)
		if err != nil {
			slog.Error("drift detection failed",
				"batch_id", batch.BatchID,
				"error", err,
			)
		} else {
			alerts = append(alerts, driftAlerts...)
			if w.repo != nil && len(metrics) > 0 {
				if err := w.repo.SaveDriftMetrics(ctx, tenantID, metrics); err != nil {
					slog.Error("failed to save drift metrics",
						"batch_id", batch.BatchID,
						"error", err,
					)
				}
			}
		}
	}

	if len(alerts) > 0 {
		w.PublishAlerts(ctx, tenantID, alerts)
	}
}

// updateProfiles folds the batch into per-account running statistics
// held in the cache. Welford update keeps mean and variance without
// storing history.
func (w *Worker) updateProfiles(ctx context.Context, tenantID string, txs []domain.Transaction) {
	if w.cache == nil {
		return
	}

	for i := range txs {
		tx := &txs[i]
		if tx.AccountCode == "" {
			continue
		}

		p, err := w.cache.GetAccountProfile(ctx, tenantID, tx.AccountCode)
		if err != nil {
			slog.Warn("account profile read failed",
				"account", tx.AccountCode,
				"error", err,
			)
			continue
		}
		if p == nil {
			p = &domain.AccountProfile{AccountCode: tx.AccountCode}
		}

		n := float64(p.Count)
		oldMean := p.MeanAmount
		newMean := (oldMean*n + tx.Amount) / (n + 1)
		variance := p.StdAmount*p.StdAmount*n + (tx.Amount-oldMean)*(tx.Amount-newMean)

		p.Count++
		p.MeanAmount = newMean
		if p.Count > 1 {
			v := variance / float64(p.Count)
			if v > 0 {
				p.StdAmount = math.Sqrt(v)
			}
		}
		if tx.Amount > p.MaxAmount {
			p.MaxAmount = tx.Amount
		}
		if tx.HasTimestamp() {
			p.LastSeen = tx.Timestamp.UTC().Format(time.RFC3339)
		}

		if err := w.cache.SetAccountProfile(ctx, tenantID, tx.AccountCode, p, 24*time.Hour); err != nil {
			slog.Warn("account profile write failed",
				"account", tx.AccountCode,
				"error", err,
			)
		}
	}
}

// PublishAlerts forwards monitor alerts to the alert topic.
func (w *Worker) PublishAlerts(ctx context.Context, tenantID string, alerts []domain.Alert) {
	for i := range alerts {
		payload, _ := json.Marshal(alerts[i])
		topic := domain.TopicMonitorAlert
		if alerts[i].Type == domain.AlertDrift {
			topic = domain.TopicDriftDetected
		}
		if err := w.bus.Publish(ctx, tenantID, topic, payload); err != nil {
			slog.Error("failed to publish alert",
				"alert_id", alerts[i].ID,
				"error", err,
			)
		}
		if w.repo != nil {
			if err := w.repo.SaveAlert(ctx, tenantID, &alerts[i]); err != nil {
				slog.Error("failed to save alert",
					"alert_id", alerts[i].ID,
					"error", err,
				)
			}
		}
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

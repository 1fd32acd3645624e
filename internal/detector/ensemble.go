// Package detector implements the ensemble anomaly detector: a fixed
// set of unsupervised scoring models whose per-record outputs are
// combined into one verdict per transaction.
package detector

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/reasons"
)

var (
	// ErrNoLiveModels is returned when every configured model failed
	// to fit.
	ErrNoLiveModels = errors.New("detector: no live models in ensemble")

	// ErrUnknownMethod is returned for an unrecognized ensemble method.
	ErrUnknownMethod = errors.New("detector: unknown ensemble method")
)

// defaultWeight substitutes for a model whose F1 is unknown in the
// weighted ensemble. When every weight is unknown this degenerates to
// uniform weighting, which is the intended compatibility behavior.
const defaultWeight = 0.5

// Ensemble owns the fitted scalers, models and their metrics as
// explicit instance state. Training and detection on one instance are
// serialized by an internal lock; independent instances share nothing.
type Ensemble struct {
	mu  sync.Mutex
	cfg domain.DetectorConfig

	explain *reasons.Engine

	models  []scoringModel
	scalers map[string]*StandardScaler
	metrics map[string]domain.ModelMetrics
	live    map[string]bool
}

// NewEnsemble constructs the detector with the configured algorithm
// set. A nil reason engine gets the built-in diagnostic rules.
func NewEnsemble(cfg domain.DetectorConfig, explain *reasons.Engine) (*Ensemble, error) {
	if cfg.Contamination <= 0 || cfg.Contamination >= 1 {
		cfg.Contamination = 0.05
	}
	if explain == nil {
		var err error
		explain, err = reasons.NewDefaultEngine()
		if err != nil {
			return nil, err
		}
	}

	e := &Ensemble{
		cfg:     cfg,
		explain: explain,
		scalers: make(map[string]*StandardScaler),
		metrics: make(map[string]domain.ModelMetrics),
		live:    make(map[string]bool),
	}
	e.models = []scoringModel{
		NewIsolationForest(cfg.ForestTrees, cfg.ForestSampleSize, cfg.Contamination, cfg.Seed),
		NewOneClassSVM(cfg.SVMNu, cfg.SVMEpochs, cfg.Contamination, cfg.Seed),
		NewEllipticEnvelope(cfg.Contamination),
		NewDensityCluster(cfg.ClusterEps, cfg.ClusterMinPts, cfg.MinClusterSize),
	}
	return e, nil
}

// Train fits one scaler and one model per configured algorithm on the
// feature table. Labels are optional {-1,+1} ground truth (-1 =
// anomaly); without them accuracy is approximated as one minus the
// observed anomaly rate and precision/recall are reported as zero.
// A model that fails to fit is logged and excluded; training fails
// only when every model fails.
func (e *Ensemble) Train(ft *domain.FeatureTable, labels []int) (map[string]domain.ModelMetrics, error) {
	if ft == nil || ft.Len() == 0 || ft.NumColumns() == 0 {
		return nil, ErrEmptyFeatures
	}
	if labels != nil && len(labels) != ft.Len() {
		return nil, fmt.Errorf("detector: %d labels for %d rows", len(labels), ft.Len())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	liveCount := 0
	for _, m := range e.models {
		name := m.Name()
		e.live[name] = false

		scaler := &StandardScaler{}
		if err := scaler.Fit(ft.Rows); err != nil {
			slog.Warn("model excluded from ensemble", "model", name, "stage", "scale", "error", err)
			continue
		}
		scaled, err := scaler.Transform(ft.Rows)
		if err != nil {
			slog.Warn("model excluded from ensemble", "model", name, "stage", "scale", "error", err)
			continue
		}

		if err := m.Fit(scaled); err != nil {
			slog.Warn("model excluded from ensemble", "model", name, "stage", "fit", "error", err)
			continue
		}
		_, flags, err := m.Score(scaled)
		if err != nil {
			slog.Warn("model excluded from ensemble", "model", name, "stage", "score", "error", err)
			continue
		}

		mm := evaluateModel(name, flags, labels)
		mm.TrainingSamples = ft.Len()
		mm.TrainedAt = now
		e.metrics[name] = mm
		e.scalers[name] = scaler
		e.live[name] = true
		liveCount++

		slog.Info("model trained",
			"model", name,
			"samples", ft.Len(),
			"anomaly_rate", mm.AnomalyRate,
			"f1", mm.F1Score,
		)
	}

	if liveCount == 0 {
		return nil, ErrNoLiveModels
	}

	out := make(map[string]domain.ModelMetrics, liveCount)
	for name, mm := range e.metrics {
		if e.live[name] {
			out[name] = mm
		}
	}
	return out, nil
}

// Detect scores every record with each live model and combines the
// outputs per the ensemble method. Results are index-aligned with the
// table. A model that fails to score is excluded for this run; when no
// model succeeds the result set is empty and the caller is responsible
// for treating that as a failure.
func (e *Ensemble) Detect(ft *domain.FeatureTable, method domain.EnsembleMethod) ([]domain.AnomalyResult, error) {
	if ft == nil || ft.Len() == 0 || ft.NumColumns() == 0 {
		return nil, ErrEmptyFeatures
	}
	switch method {
	case domain.EnsembleVoting, domain.EnsembleWeighted, domain.EnsembleConsensus:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	type modelOutput struct {
		scores []float64
		flags  []bool
		weight float64
	}
	var outputs []modelOutput
	for _, m := range e.models {
		name := m.Name()
		if !e.live[name] {
			continue
		}
		scaled, err := e.scalers[name].Transform(ft.Rows)
		if err != nil {
			slog.Warn("model excluded from detection run", "model", name, "error", err)
			continue
		}
		scores, flags, err := m.Score(scaled)
		if err != nil {
			slog.Warn("model excluded from detection run", "model", name, "error", err)
			continue
		}
		outputs = append(outputs, modelOutput{scores: scores, flags: flags, weight: e.weightOf(name)})
	}

	if len(outputs) == 0 {
		slog.Error("detection ran with zero live models")
		return []domain.AnomalyResult{}, nil
	}

	now := time.Now().UTC()
	results := make([]domain.AnomalyResult, ft.Len())
	for i := 0; i < ft.Len(); i++ {
		var (
			votes       int
			scoreSum    float64
			weightSum   float64
			weightedSum float64
			weightedVot float64
			allAgree    = true
		)
		for _, out := range outputs {
			scoreSum += out.scores[i]
			weightSum += out.weight
			weightedSum += out.weight * out.scores[i]
			if out.flags[i] {
				votes++
				weightedVot += out.weight
			} else {
				allAgree = false
			}
		}

		var isAnomaly bool
		var score float64
		switch method {
		case domain.EnsembleVoting:
			// Strict majority; an exact tie resolves to normal.
			isAnomaly = 2*votes > len(outputs)
			score = scoreSum / float64(len(outputs))
		case domain.EnsembleWeighted:
			isAnomaly = weightedVot/weightSum > 0.5
			score = weightedSum / weightSum
		case domain.EnsembleConsensus:
			isAnomaly = allAgree
			score = scoreSum / float64(len(outputs))
		}

		confidence := score
		if confidence < 0 {
			confidence = -confidence
		}
		if confidence > 1 {
			confidence = 1
		}

		var txID string
		if i < len(ft.RecordIDs) {
			txID = ft.RecordIDs[i]
		}

		results[i] = domain.AnomalyResult{
			ID:              uuid.New().String(),
			TransactionID:   txID,
			AnomalyScore:    score,
			IsAnomaly:       isAnomaly,
			DetectionMethod: method,
			ConfidenceLevel: confidence,
			AnomalyReasons:  e.explain.Explain(featureMap(ft, i)),
			Timestamp:       now,
		}
	}

	return results, nil
}

// weightOf returns the stored F1 for the weighted ensemble, falling
// back to defaultWeight when training had no labels or the model is
// unknown.
func (e *Ensemble) weightOf(name string) float64 {
	mm, ok := e.metrics[name]
	if !ok || !mm.LabelsProvided || mm.F1Score <= 0 {
		return defaultWeight
	}
	return mm.F1Score
}

// Metrics returns a copy of the stored per-model training metrics.
func (e *Ensemble) Metrics() map[string]domain.ModelMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]domain.ModelMetrics, len(e.metrics))
	for k, v := range e.metrics {
		out[k] = v
	}
	return out
}

// LiveModels returns the names of models currently fit and included.
func (e *Ensemble) LiveModels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, m := range e.models {
		if e.live[m.Name()] {
			out = append(out, m.Name())
		}
	}
	return out
}

// featureMap returns the named values for one row. The pre-pruning
// diagnostics are preferred when present so reason rules can reference
// columns the post-processing pass dropped.
func featureMap(ft *domain.FeatureTable, row int) map[string]float64 {
	if row < len(ft.Diagnostics) && ft.Diagnostics[row] != nil {
		return ft.Diagnostics[row]
	}
	m := make(map[string]float64, len(ft.Columns))
	for j, name := range ft.Columns {
		m[name] = ft.Rows[row][j]
	}
	return m
}

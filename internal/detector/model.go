package detector

import (
	"errors"
	"sort"
)

// Algorithm names as stored in metrics and the model bundle.
const (
	AlgoIsolationForest  = "isolation_forest"
	AlgoOneClassSVM      = "one_class_svm"
	AlgoEllipticEnvelope = "elliptic_envelope"
	AlgoDensityCluster   = "density_cluster"
)

var (
	// ErrNotTrained is returned when a model scores before fitting.
	ErrNotTrained = errors.New("detector: model not trained")

	// ErrEmptyFeatures is returned for empty or column-less input.
	ErrEmptyFeatures = errors.New("detector: empty feature table")
)

// scoringModel is one unsupervised detector. Score returns a per-record
// anomaly score (higher = more anomalous, roughly [0,1]) plus the
// model's own flag per record. Implementations are deterministic for a
// fixed seed.
type scoringModel interface {
	Name() string
	Fit(data [][]float64) error
	Score(data [][]float64) (scores []float64, flags []bool, err error)
}

// scoreQuantile returns the q-th quantile of scores, used to derive a
// flagging threshold from the configured contamination fraction.
func scoreQuantile(scores []float64, q float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

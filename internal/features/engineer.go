// Package features transforms ordered transaction batches into the
// numeric feature tables consumed by the ensemble detector.
package features

import (
	"errors"
	"log/slog"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	// ErrEmptyBatch is returned when BuildFeatures receives no records.
	ErrEmptyBatch = errors.New("features: empty transaction batch")
)

// Well-known feature names referenced outside this package (diagnostic
// reason rules, tests). The full column set is larger and depends on
// the batch contents.
const (
	FeatAmount            = "amount"
	FeatAmountZScore      = "amount_zscore"
	FeatIsWeekend         = "is_weekend"
	FeatAccountFrequency  = "account_frequency"
	FeatAmountToRolling7  = "amount_to_rolling_mean_7"
	FeatIsOffHours        = "is_off_hours"
	FeatIsRapidSuccession = "is_rapid_succession"
	FeatIsLargeAmount     = "is_large_amount"
	FeatIsRound1000       = "is_round_1000"
)

// Engineer builds feature tables from ordered transaction batches.
// Input order is treated as time order; callers sort by timestamp
// beforehand. An Engineer is stateless and safe for concurrent use.
type Engineer struct {
	cfg domain.FeatureConfig
}

// NewEngineer creates an Engineer, filling unset config with defaults.
func NewEngineer(cfg domain.FeatureConfig) *Engineer {
	if len(cfg.RollingWindows) == 0 {
		cfg.RollingWindows = []int{7, 30}
	}
	if len(cfg.EMASpans) == 0 {
		cfg.EMASpans = []int{7, 30}
	}
	if cfg.CorrelationThreshold <= 0 {
		cfg.CorrelationThreshold = 0.95
	}
	if cfg.RapidSuccessionSecs <= 0 {
		cfg.RapidSuccessionSecs = 60
	}
	return &Engineer{cfg: cfg}
}

// BuildFeatures produces one feature vector per record, index-aligned
// with the input. Missing optional fields contribute zeros rather than
// failing the run. The returned table has been through the mandatory
// post-processing pass: no NaN/Inf cells, no constant columns, no
// column pair with |correlation| >= the configured threshold.
func (e *Engineer) BuildFeatures(records []domain.Transaction) (*domain.FeatureTable, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	amounts := make([]float64, len(records))
	for i := range records {
		amounts[i] = records[i].Amount
	}

	b := newBuilder(len(records))

	e.amountFeatures(b, records, amounts)
	e.temporalFeatures(b, records)
	e.statisticalFeatures(b, amounts)
	e.aggregateFeatures(b, records, amounts)
	e.behavioralFeatures(b, amounts)
	e.networkFeatures(b, records)
	e.riskFeatures(b, records, amounts)
	e.categoricalFeatures(b, records)

	raw := b.columnCount()
	table := e.postProcess(b)

	table.RecordIDs = make([]string, len(records))
	for i := range records {
		table.RecordIDs[i] = records[i].ID
	}
	table.Diagnostics = b.rowMaps()

	slog.Debug("feature table built",
		"records", len(records),
		"raw_columns", raw,
		"columns", table.NumColumns(),
	)

	return table, nil
}

// builder accumulates columns in deterministic order, column-major.
type builder struct {
	n    int
	cols []string
	data [][]float64
}

func newBuilder(n int) *builder {
	return &builder{n: n}
}

// add appends a named column. Columns shorter than the batch are a
// programming error; panicking early beats silent misalignment.
func (b *builder) add(name string, vals []float64) {
	if len(vals) != b.n {
		panic("features: column " + name + " length mismatch")
	}
	b.cols = append(b.cols, name)
	b.data = append(b.data, vals)
}

func (b *builder) columnCount() int { return len(b.cols) }

// rowMaps converts the raw column-major data into one name-to-value
// map per record, before any pruning.
func (b *builder) rowMaps() []map[string]float64 {
	out := make([]map[string]float64, b.n)
	for r := 0; r < b.n; r++ {
		m := make(map[string]float64, len(b.cols))
		for c, name := range b.cols {
			m[name] = b.data[c][r]
		}
		out[r] = m
	}
	return out
}

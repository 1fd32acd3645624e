package features

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
)

type groupStats struct {
	count     int
	mean      float64
	std       float64
	min       float64
	max       float64
	firstSeen time.Time
	lastSeen  time.Time
}

// aggregateFeatures broadcasts per-account and per-entity batch
// statistics back onto each record, plus each record's deviation from
// its group and an approximate transaction velocity.
func (e *Engineer) aggregateFeatures(b *builder, records []domain.Transaction, amounts []float64) {
	byAccount := groupAmounts(records, amounts, func(t *domain.Transaction) string { return t.AccountCode })
	byEntity := groupAmounts(records, amounts, func(t *domain.Transaction) string { return t.Entity })

	e.emitGroup(b, "account", records, amounts, byAccount, func(t *domain.Transaction) string { return t.AccountCode })
	e.emitGroup(b, "entity", records, amounts, byEntity, func(t *domain.Transaction) string { return t.Entity })

	// Approximate velocity: transactions per day over the span of days
	// the account appears in, when timestamps exist.
	n := len(records)
	velocity := make([]float64, n)
	for i := range records {
		gs, ok := byAccount[records[i].AccountCode]
		if !ok || gs.firstSeen.IsZero() {
			continue
		}
		spanDays := gs.lastSeen.Sub(gs.firstSeen).Hours() / 24
		if spanDays < 1 {
			spanDays = 1
		}
		velocity[i] = float64(gs.count) / spanDays
	}
	b.add("account_velocity", velocity)
}

func (e *Engineer) emitGroup(b *builder, prefix string, records []domain.Transaction, amounts []float64, groups map[string]*groupStats, keyOf func(*domain.Transaction) string) {
	n := len(records)
	freq := make([]float64, n)
	mean := make([]float64, n)
	std := make([]float64, n)
	min := make([]float64, n)
	max := make([]float64, n)
	count := make([]float64, n)
	ratio := make([]float64, n)
	zscore := make([]float64, n)

	for i := range records {
		gs, ok := groups[keyOf(&records[i])]
		if !ok {
			continue
		}
		freq[i] = float64(gs.count)
		mean[i] = gs.mean
		std[i] = gs.std
		min[i] = gs.min
		max[i] = gs.max
		count[i] = float64(gs.count)
		ratio[i] = safeRatio(amounts[i], gs.mean)
		if gs.std > 0 {
			zscore[i] = (amounts[i] - gs.mean) / gs.std
		}
	}

	b.add(prefix+"_frequency", freq)
	b.add(prefix+"_mean", mean)
	b.add(prefix+"_std", std)
	b.add(prefix+"_min", min)
	b.add(prefix+"_max", max)
	b.add(prefix+"_count", count)
	b.add(prefix+"_amount_ratio", ratio)
	b.add(prefix+"_amount_zscore", zscore)
}

func groupAmounts(records []domain.Transaction, amounts []float64, keyOf func(*domain.Transaction) string) map[string]*groupStats {
	vals := make(map[string][]float64)
	groups := make(map[string]*groupStats)

	for i := range records {
		key := keyOf(&records[i])
		vals[key] = append(vals[key], amounts[i])

		gs, ok := groups[key]
		if !ok {
			gs = &groupStats{min: math.Inf(1), max: math.Inf(-1)}
			groups[key] = gs
		}
		gs.count++
		if amounts[i] < gs.min {
			gs.min = amounts[i]
		}
		if amounts[i] > gs.max {
			gs.max = amounts[i]
		}
		if records[i].HasTimestamp() {
			ts := records[i].Timestamp
			if gs.firstSeen.IsZero() || ts.Before(gs.firstSeen) {
				gs.firstSeen = ts
			}
			if ts.After(gs.lastSeen) {
				gs.lastSeen = ts
			}
		}
	}

	for key, gs := range groups {
		gs.mean = stat.Mean(vals[key], nil)
		if gs.count >= 2 {
			gs.std = zeroIfNaN(stat.StdDev(vals[key], nil))
		}
	}
	return groups
}

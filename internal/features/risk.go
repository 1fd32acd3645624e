package features

import (
	"math"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// riskFeatures emits indicators commonly used in transaction review:
// extreme amounts, suspicious round numbers, off-hours activity and
// rapid succession.
func (e *Engineer) riskFeatures(b *builder, records []domain.Transaction, amounts []float64) {
	n := len(records)

	abs := make([]float64, n)
	for i, a := range amounts {
		abs[i] = math.Abs(a)
	}
	p95 := quantile(abs, 0.95)
	p05 := quantile(abs, 0.05)

	isLarge := make([]float64, n)
	isSmall := make([]float64, n)
	isRound1k := make([]float64, n)
	isRound10k := make([]float64, n)
	roundFreq := make([]float64, n)
	isOffHours := make([]float64, n)
	isRapid := make([]float64, n)

	// Frequency of amounts rounded to the nearest 1,000: flags
	// suspiciously common round figures within the batch.
	roundedCount := make(map[float64]int)
	for _, a := range abs {
		roundedCount[math.Round(a/1000)*1000]++
	}

	for i := range records {
		a := abs[i]
		if a > p95 {
			isLarge[i] = 1
		}
		if a < p05 {
			isSmall[i] = 1
		}
		if a > 0 && math.Mod(a, 1000) == 0 {
			isRound1k[i] = 1
		}
		if a > 0 && math.Mod(a, 10000) == 0 {
			isRound10k[i] = 1
		}
		roundFreq[i] = float64(roundedCount[math.Round(a/1000)*1000])

		if records[i].HasTimestamp() {
			h := records[i].Timestamp.Hour()
			if h < 6 || h >= 22 {
				isOffHours[i] = 1
			}
		}
		if i > 0 && records[i].HasTimestamp() && records[i-1].HasTimestamp() {
			gap := records[i].Timestamp.Sub(records[i-1].Timestamp).Seconds()
			if gap >= 0 && gap < e.cfg.RapidSuccessionSecs {
				isRapid[i] = 1
			}
		}
	}

	b.add(FeatIsLargeAmount, isLarge)
	b.add("is_small_amount", isSmall)
	b.add(FeatIsRound1000, isRound1k)
	b.add("is_round_10000", isRound10k)
	b.add("round_amount_frequency", roundFreq)
	b.add(FeatIsOffHours, isOffHours)
	b.add(FeatIsRapidSuccession, isRapid)
}

// quantile returns the q-th quantile by nearest-rank on a sorted copy.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

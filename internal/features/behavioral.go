package features

import (
	"fmt"
)

// behavioralFeatures derives short sequential context: lagged amounts,
// first differences and ratios to lagged values. Positions before the
// first lag read as zero.
func (e *Engineer) behavioralFeatures(b *builder, amounts []float64) {
	n := len(amounts)
	for _, lag := range []int{1, 2, 3} {
		lagged := make([]float64, n)
		diff := make([]float64, n)
		ratio := make([]float64, n)
		for i := lag; i < n; i++ {
			lagged[i] = amounts[i-lag]
			diff[i] = amounts[i] - amounts[i-lag]
			ratio[i] = safeRatio(amounts[i], amounts[i-lag])
		}
		b.add(fmt.Sprintf("amount_lag_%d", lag), lagged)
		b.add(fmt.Sprintf("amount_diff_%d", lag), diff)
		b.add(fmt.Sprintf("amount_ratio_%d", lag), ratio)
	}
}

package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// statisticalFeatures derives batch-level and causal rolling statistics
// of the amount series. Rolling windows end at the current record and
// never look ahead.
func (e *Engineer) statisticalFeatures(b *builder, amounts []float64) {
	n := len(amounts)

	mean := stat.Mean(amounts, nil)
	std := stat.StdDev(amounts, nil)
	if n < 2 || math.IsNaN(std) {
		std = 0
	}

	zscore := make([]float64, n)
	pctRank := make([]float64, n)
	for i, a := range amounts {
		if std > 0 {
			zscore[i] = (a - mean) / std
		}
		pctRank[i] = percentileRank(amounts, a)
	}
	b.add(FeatAmountZScore, zscore)
	b.add("amount_pct_rank", pctRank)

	for _, w := range e.cfg.RollingWindows {
		e.rollingFeatures(b, amounts, w)
	}

	for _, span := range e.cfg.EMASpans {
		ema := exponentialMovingAverage(amounts, span)
		ratio := make([]float64, n)
		for i, a := range amounts {
			ratio[i] = safeRatio(a, ema[i])
		}
		b.add(fmt.Sprintf("ema_%d", span), ema)
		b.add(fmt.Sprintf("amount_to_ema_%d", span), ratio)
	}
}

// rollingFeatures emits mean/std/min/max/skew/kurtosis over a trailing
// window of w records plus the current amount's ratio to each of the
// order statistics.
func (e *Engineer) rollingFeatures(b *builder, amounts []float64, w int) {
	n := len(amounts)
	rMean := make([]float64, n)
	rStd := make([]float64, n)
	rMin := make([]float64, n)
	rMax := make([]float64, n)
	rSkew := make([]float64, n)
	rKurt := make([]float64, n)
	toMean := make([]float64, n)
	toStd := make([]float64, n)
	toMin := make([]float64, n)
	toMax := make([]float64, n)

	for i := 0; i < n; i++ {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		win := amounts[lo : i+1]

		m := stat.Mean(win, nil)
		rMean[i] = m
		if len(win) >= 2 {
			s := stat.StdDev(win, nil)
			if !math.IsNaN(s) {
				rStd[i] = s
			}
		}
		mn, mx := win[0], win[0]
		for _, v := range win[1:] {
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
		}
		rMin[i] = mn
		rMax[i] = mx
		if len(win) >= 3 && rStd[i] > 0 {
			rSkew[i] = zeroIfNaN(stat.Skew(win, nil))
		}
		if len(win) >= 4 && rStd[i] > 0 {
			rKurt[i] = zeroIfNaN(stat.ExKurtosis(win, nil))
		}

		a := amounts[i]
		toMean[i] = safeRatio(a, m)
		toStd[i] = safeRatio(a, rStd[i])
		toMin[i] = safeRatio(a, mn)
		toMax[i] = safeRatio(a, mx)
	}

	b.add(fmt.Sprintf("rolling_mean_%d", w), rMean)
	b.add(fmt.Sprintf("rolling_std_%d", w), rStd)
	b.add(fmt.Sprintf("rolling_min_%d", w), rMin)
	b.add(fmt.Sprintf("rolling_max_%d", w), rMax)
	b.add(fmt.Sprintf("rolling_skew_%d", w), rSkew)
	b.add(fmt.Sprintf("rolling_kurt_%d", w), rKurt)
	b.add(fmt.Sprintf("amount_to_rolling_mean_%d", w), toMean)
	b.add(fmt.Sprintf("amount_to_rolling_std_%d", w), toStd)
	b.add(fmt.Sprintf("amount_to_rolling_min_%d", w), toMin)
	b.add(fmt.Sprintf("amount_to_rolling_max_%d", w), toMax)
}

// exponentialMovingAverage computes an EMA with alpha = 2/(span+1),
// seeded with the first observation.
func exponentialMovingAverage(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// percentileRank returns the mid-rank fraction of batch values at or
// below v, in [0, 1].
func percentileRank(vals []float64, v float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	less, equal := 0, 0
	for _, x := range vals {
		switch {
		case x < v:
			less++
		case x == v:
			equal++
		}
	}
	return (float64(less) + 0.5*float64(equal)) / float64(len(vals))
}

// safeRatio divides a by b, mapping a zero denominator to 0 so the
// post-processing pass never sees an infinity from this path.
func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

package monitor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// welchT runs a two-sample t-test with unequal variances. It returns
// the standardized mean difference (the drift score) and a two-sided
// p-value from the Student's t distribution with Welch-Satterthwaite
// degrees of freedom. Symmetric under swapping the samples.
func welchT(a, b []float64) (score, pValue float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return 0, 1
	}
	m1, m2 := stat.Mean(a, nil), stat.Mean(b, nil)
	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)

	pooled := math.Sqrt((v1 + v2) / 2)
	if pooled > 0 {
		score = math.Abs(m1-m2) / pooled
	}

	se := math.Sqrt(v1/n1 + v2/n2)
	if se == 0 {
		if m1 == m2 {
			return score, 1
		}
		return score, 0
	}
	t := (m1 - m2) / se

	num := (v1/n1 + v2/n2) * (v1/n1 + v2/n2)
	den := (v1*v1)/(n1*n1*(n1-1)) + (v2*v2)/(n2*n2*(n2-1))
	df := num / den
	if df < 1 {
		df = 1
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue = 2 * dist.CDF(-math.Abs(t))
	return score, pValue
}

// fTest compares variances. It returns |log variance ratio| as the
// drift score and a two-sided p-value from the F distribution.
// Symmetric under swapping the samples.
func fTest(a, b []float64) (score, pValue float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return 0, 1
	}
	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)
	if v1 == 0 || v2 == 0 {
		if v1 == v2 {
			return 0, 1
		}
		return math.Inf(1), 0
	}

	ratio := v1 / v2
	score = math.Abs(math.Log(ratio))

	dist := distuv.F{D1: n1 - 1, D2: n2 - 1}
	cdf := dist.CDF(ratio)
	pValue = 2 * math.Min(cdf, 1-cdf)
	if pValue > 1 {
		pValue = 1
	}
	return score, pValue
}

// ksTest runs the two-sample Kolmogorov-Smirnov test. It returns the
// KS statistic and an asymptotic p-value with the usual small-sample
// correction. The two-sample statistic itself is symmetric.
func ksTest(a, b []float64) (statistic, pValue float64) {
	n1, n2 := len(a), len(b)
	if n1 == 0 || n2 == 0 {
		return 0, 1
	}

	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	var i, j int
	var d float64
	for i < n1 && j < n2 {
		x1, x2 := sa[i], sb[j]
		var x float64
		if x1 <= x2 {
			x = x1
		} else {
			x = x2
		}
		for i < n1 && sa[i] <= x {
			i++
		}
		for j < n2 && sb[j] <= x {
			j++
		}
		diff := math.Abs(float64(i)/float64(n1) - float64(j)/float64(n2))
		if diff > d {
			d = diff
		}
	}

	ne := float64(n1) * float64(n2) / float64(n1+n2)
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * d
	pValue = ksProbability(lambda)
	return d, pValue
}

// ksProbability evaluates the Kolmogorov distribution tail
// Q(lambda) = 2 * sum_{k>=1} (-1)^(k-1) exp(-2 k^2 lambda^2).
func ksProbability(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

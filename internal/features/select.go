package features

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrLabelMismatch is returned when labels are not index-aligned with
// the feature table.
var ErrLabelMismatch = errors.New("features: labels length does not match table rows")

// SelectByVariance keeps the k columns with the highest variance.
// Surviving columns keep their original order.
func SelectByVariance(t *domain.FeatureTable, k int) *domain.FeatureTable {
	return selectTopK(t, k, func(col []float64) float64 {
		return zeroIfNaN(stat.Variance(col, nil))
	})
}

// SelectByFScore keeps the k columns with the highest one-way ANOVA
// F-statistic between the anomaly (-1) and normal (+1) label groups.
func SelectByFScore(t *domain.FeatureTable, labels []int, k int) (*domain.FeatureTable, error) {
	if len(labels) != t.Len() {
		return nil, ErrLabelMismatch
	}
	return selectTopK(t, k, func(col []float64) float64 {
		return fScore(col, labels)
	}), nil
}

// SelectByMutualInfo keeps the k columns with the highest estimated
// mutual information against the labels, using equal-width binning.
func SelectByMutualInfo(t *domain.FeatureTable, labels []int, k int) (*domain.FeatureTable, error) {
	if len(labels) != t.Len() {
		return nil, ErrLabelMismatch
	}
	return selectTopK(t, k, func(col []float64) float64 {
		return mutualInfo(col, labels, 10)
	}), nil
}

func selectTopK(t *domain.FeatureTable, k int, score func([]float64) float64) *domain.FeatureTable {
	if k <= 0 || k >= t.NumColumns() {
		return domain.NewFeatureTable(t.Columns, t.Rows)
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, t.NumColumns())
	for c, name := range t.Columns {
		ranked[c] = scored{idx: c, score: score(t.Column(name))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	chosen := make(map[int]bool, k)
	for _, s := range ranked[:k] {
		chosen[s.idx] = true
	}

	cols := make([]string, 0, k)
	idxs := make([]int, 0, k)
	for c, name := range t.Columns {
		if chosen[c] {
			cols = append(cols, name)
			idxs = append(idxs, c)
		}
	}

	rows := make([][]float64, t.Len())
	for r := range t.Rows {
		row := make([]float64, len(idxs))
		for i, c := range idxs {
			row[i] = t.Rows[r][c]
		}
		rows[r] = row
	}
	return domain.NewFeatureTable(cols, rows)
}

// fScore computes the one-way ANOVA F-statistic for a two-group split.
func fScore(col []float64, labels []int) float64 {
	var anom, norm []float64
	for i, v := range col {
		if labels[i] == domain.LabelAnomaly {
			anom = append(anom, v)
		} else {
			norm = append(norm, v)
		}
	}
	if len(anom) < 2 || len(norm) < 2 {
		return 0
	}

	grand := stat.Mean(col, nil)
	mA, mN := stat.Mean(anom, nil), stat.Mean(norm, nil)

	between := float64(len(anom))*(mA-grand)*(mA-grand) + float64(len(norm))*(mN-grand)*(mN-grand)
	within := 0.0
	for _, v := range anom {
		within += (v - mA) * (v - mA)
	}
	for _, v := range norm {
		within += (v - mN) * (v - mN)
	}

	dfWithin := float64(len(col) - 2)
	if within == 0 || dfWithin <= 0 {
		return 0
	}
	return between / (within / dfWithin)
}

// mutualInfo estimates I(X;Y) in nats between a binned continuous
// column and the binary label.
func mutualInfo(col []float64, labels []int, bins int) float64 {
	n := len(col)
	if n == 0 {
		return 0
	}
	mn, mx := col[0], col[0]
	for _, v := range col[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	if mn == mx {
		return 0
	}
	width := (mx - mn) / float64(bins)

	joint := make(map[[2]int]float64)
	px := make(map[int]float64)
	py := make(map[int]float64)
	for i, v := range col {
		bin := int((v - mn) / width)
		if bin >= bins {
			bin = bins - 1
		}
		y := 0
		if labels[i] == domain.LabelAnomaly {
			y = 1
		}
		joint[[2]int{bin, y}]++
		px[bin]++
		py[y]++
	}

	mi := 0.0
	for key, c := range joint {
		pxy := c / float64(n)
		pX := px[key[0]] / float64(n)
		pY := py[key[1]] / float64(n)
		mi += pxy * math.Log(pxy/(pX*pY))
	}
	if mi < 0 {
		mi = 0
	}
	return mi
}

package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
)

// postProcess applies the mandatory final pass: replace NaN/Inf cells
// with zero, drop columns with at most one distinct value, then drop
// the later column of every pair whose absolute correlation meets the
// threshold. Column order is preserved, which makes the tie-break
// deterministic: the first occurrence survives.
func (e *Engineer) postProcess(b *builder) *domain.FeatureTable {
	for _, col := range b.data {
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				col[i] = 0
			}
		}
	}

	keep := make([]int, 0, len(b.cols))
	for c := range b.cols {
		if distinctCount(b.data[c], 2) > 1 {
			keep = append(keep, c)
		}
	}

	// Pairwise correlation prune over the surviving columns.
	dropped := make(map[int]bool)
	for i := 0; i < len(keep); i++ {
		if dropped[keep[i]] {
			continue
		}
		for j := i + 1; j < len(keep); j++ {
			if dropped[keep[j]] {
				continue
			}
			r := stat.Correlation(b.data[keep[i]], b.data[keep[j]], nil)
			if !math.IsNaN(r) && math.Abs(r) >= e.cfg.CorrelationThreshold {
				dropped[keep[j]] = true
			}
		}
	}

	cols := make([]string, 0, len(keep))
	colData := make([][]float64, 0, len(keep))
	for _, c := range keep {
		if dropped[c] {
			continue
		}
		cols = append(cols, b.cols[c])
		colData = append(colData, b.data[c])
	}

	rows := make([][]float64, b.n)
	for r := 0; r < b.n; r++ {
		row := make([]float64, len(cols))
		for c := range colData {
			row[c] = colData[c][r]
		}
		rows[r] = row
	}

	return domain.NewFeatureTable(cols, rows)
}

// distinctCount counts distinct values in col, stopping early at limit.
func distinctCount(col []float64, limit int) int {
	seen := make(map[float64]struct{}, limit)
	for _, v := range col {
		seen[v] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

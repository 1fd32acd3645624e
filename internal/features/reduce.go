package features

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrBadComponents is returned when the requested component count is
// not in [1, columns].
var ErrBadComponents = errors.New("features: component count out of range")

// ReducePCA projects the table onto its first k principal components.
// Columns are named pc_1..pc_k.
func ReducePCA(t *domain.FeatureTable, k int) (*domain.FeatureTable, error) {
	if k < 1 || k > t.NumColumns() {
		return nil, ErrBadComponents
	}

	centered := centeredMatrix(t)

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, errors.New("features: SVD factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)

	return project(t, &v, k, "pc_"), nil
}

// ReduceICA projects the table onto k independent-style components:
// PCA whitening followed by a deflation FastICA pass with a tanh
// contrast function. Deterministic for a fixed seed.
func ReduceICA(t *domain.FeatureTable, k int, seed int64) (*domain.FeatureTable, error) {
	if k < 1 || k > t.NumColumns() {
		return nil, ErrBadComponents
	}

	centered := centeredMatrix(t)
	n, _ := centered.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, errors.New("features: SVD factorization failed")
	}
	var u mat.Dense
	svd.UTo(&u)
	sigma := svd.Values(nil)

	// Whitened data: the first k left singular vectors scaled to unit
	// variance, sqrt(n) * U_k.
	white := mat.NewDense(n, k, nil)
	for j := 0; j < k; j++ {
		if sigma[j] == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			white.Set(i, j, u.At(i, j)*math.Sqrt(float64(n)))
		}
	}

	w := fastICA(white, k, seed)

	var out mat.Dense
	out.Mul(white, w.T())

	cols := make([]string, k)
	rows := make([][]float64, n)
	for j := 0; j < k; j++ {
		cols[j] = fmt.Sprintf("ic_%d", j+1)
	}
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = out.At(i, j)
		}
		rows[i] = row
	}
	return domain.NewFeatureTable(cols, rows), nil
}

// ReduceClusterDistance replaces columns with the record's distance to
// each of k seeded k-means centroids, named cluster_dist_1..k.
func ReduceClusterDistance(t *domain.FeatureTable, k int, seed int64) (*domain.FeatureTable, error) {
	if k < 1 || k > t.Len() {
		return nil, ErrBadComponents
	}

	centers := kMeans(t.Rows, k, seed, 25)

	cols := make([]string, k)
	for j := range cols {
		cols[j] = fmt.Sprintf("cluster_dist_%d", j+1)
	}
	rows := make([][]float64, t.Len())
	for i, rec := range t.Rows {
		row := make([]float64, k)
		for j, c := range centers {
			row[j] = euclidean(rec, c)
		}
		rows[i] = row
	}
	return domain.NewFeatureTable(cols, rows), nil
}

func centeredMatrix(t *domain.FeatureTable) *mat.Dense {
	n, p := t.Len(), t.NumColumns()
	means := make([]float64, p)
	for _, row := range t.Rows {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	m := mat.NewDense(n, p, nil)
	for i, row := range t.Rows {
		for j, v := range row {
			m.Set(i, j, v-means[j])
		}
	}
	return m
}

func project(t *domain.FeatureTable, v *mat.Dense, k int, prefix string) *domain.FeatureTable {
	centered := centeredMatrix(t)
	n, _ := centered.Dims()

	var out mat.Dense
	out.Mul(centered, v.Slice(0, t.NumColumns(), 0, k))

	cols := make([]string, k)
	for j := 0; j < k; j++ {
		cols[j] = fmt.Sprintf("%s%d", prefix, j+1)
	}
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			row[j] = out.At(i, j)
		}
		rows[i] = row
	}
	return domain.NewFeatureTable(cols, rows)
}

// fastICA estimates a k x k unmixing matrix on whitened data using
// one-unit deflation with g(u) = tanh(u).
func fastICA(white *mat.Dense, k int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	n, _ := white.Dims()
	w := mat.NewDense(k, k, nil)

	for comp := 0; comp < k; comp++ {
		wv := make([]float64, k)
		for j := range wv {
			wv[j] = rng.NormFloat64()
		}
		normalize(wv)

		for iter := 0; iter < 100; iter++ {
			next := make([]float64, k)
			var gPrimeSum float64
			for i := 0; i < n; i++ {
				var u float64
				for j := 0; j < k; j++ {
					u += white.At(i, j) * wv[j]
				}
				g := math.Tanh(u)
				gPrimeSum += 1 - g*g
				for j := 0; j < k; j++ {
					next[j] += white.At(i, j) * g
				}
			}
			for j := 0; j < k; j++ {
				next[j] = next[j]/float64(n) - gPrimeSum/float64(n)*wv[j]
			}

			// Deflation: remove projections on previously found rows.
			for p := 0; p < comp; p++ {
				var dot float64
				for j := 0; j < k; j++ {
					dot += next[j] * w.At(p, j)
				}
				for j := 0; j < k; j++ {
					next[j] -= dot * w.At(p, j)
				}
			}
			normalize(next)

			var conv float64
			for j := 0; j < k; j++ {
				conv += next[j] * wv[j]
			}
			copy(wv, next)
			if math.Abs(math.Abs(conv)-1) < 1e-6 {
				break
			}
		}
		w.SetRow(comp, wv)
	}
	return w
}

func normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

// kMeans runs seeded Lloyd iterations and returns the centroids.
func kMeans(rows [][]float64, k int, seed int64, iters int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	p := len(rows[0])

	centers := make([][]float64, k)
	perm := rng.Perm(len(rows))
	for j := 0; j < k; j++ {
		centers[j] = append([]float64(nil), rows[perm[j]]...)
	}

	assign := make([]int, len(rows))
	for it := 0; it < iters; it++ {
		changed := false
		for i, rec := range rows {
			best, bestDist := 0, math.Inf(1)
			for j, c := range centers {
				if d := euclidean(rec, c); d < bestDist {
					best, bestDist = j, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && it > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for j := range sums {
			sums[j] = make([]float64, p)
		}
		for i, rec := range rows {
			counts[assign[i]]++
			for j, v := range rec {
				sums[assign[i]][j] += v
			}
		}
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			for d := 0; d < p; d++ {
				centers[j][d] = sums[j][d] / float64(counts[j])
			}
		}
	}
	return centers
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

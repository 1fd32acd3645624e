package detector

import (
	"math"
	"sort"
)

// DensityCluster uses DBSCAN as a proxy detector: clustering has no
// native fit step, so Fit only calibrates eps from the training data.
// At score time the batch is clustered and every member of a small
// cluster (below MinClusterSize) or noise point is flagged. Fields are
// exported for gob serialization.
type DensityCluster struct {
	Eps            float64
	MinPts         int
	MinClusterSize int

	trained bool
}

// NewDensityCluster creates the clustering proxy detector. An eps of
// zero is calibrated during Fit.
func NewDensityCluster(eps float64, minPts, minClusterSize int) *DensityCluster {
	if minPts <= 0 {
		minPts = 4
	}
	if minClusterSize <= 0 {
		minClusterSize = 5
	}
	return &DensityCluster{
		Eps:            eps,
		MinPts:         minPts,
		MinClusterSize: minClusterSize,
	}
}

func (m *DensityCluster) Name() string { return AlgoDensityCluster }

// Fit calibrates eps as the median MinPts-nearest-neighbor distance
// over (a capped sample of) the training rows when unset.
func (m *DensityCluster) Fit(data [][]float64) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return ErrEmptyFeatures
	}
	if m.Eps > 0 {
		m.trained = true
		return nil
	}

	sample := data
	if len(sample) > 500 {
		sample = sample[:500]
	}
	kDists := make([]float64, 0, len(sample))
	for i := range sample {
		dists := make([]float64, 0, len(sample)-1)
		for j := range sample {
			if i == j {
				continue
			}
			dists = append(dists, math.Sqrt(sqDist(sample[i], sample[j])))
		}
		sort.Float64s(dists)
		k := m.MinPts
		if k > len(dists) {
			k = len(dists)
		}
		if k > 0 {
			kDists = append(kDists, dists[k-1])
		}
	}
	m.Eps = scoreQuantile(kDists, 0.5)
	if m.Eps <= 0 {
		m.Eps = 0.5
	}
	m.trained = true
	return nil
}

// Score clusters the batch with DBSCAN. The per-cluster proxy score is
// 1 - clusterSize/batchSize, so isolated records approach 1 and
// members of the dominant cluster approach 0.
func (m *DensityCluster) Score(data [][]float64) ([]float64, []bool, error) {
	if m.Eps <= 0 {
		return nil, nil, ErrNotTrained
	}
	n := len(data)
	labels := m.dbscan(data)

	clusterSize := make(map[int]int)
	for _, l := range labels {
		clusterSize[l]++
	}

	scores := make([]float64, n)
	flags := make([]bool, n)
	for i, l := range labels {
		size := clusterSize[l]
		if l == noiseLabel {
			size = 1
		}
		scores[i] = 1 - float64(size)/float64(n)
		flags[i] = l == noiseLabel || size < m.MinClusterSize
	}
	return scores, flags, nil
}

const noiseLabel = -1

// dbscan assigns a cluster label per row; noise is labeled -1.
func (m *DensityCluster) dbscan(data [][]float64) []int {
	n := len(data)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = 0 // unvisited
	}

	epsSq := m.Eps * m.Eps
	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j != i && sqDist(data[i], data[j]) <= epsSq {
				out = append(out, j)
			}
		}
		return out
	}

	const unvisited = 0
	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		nbrs := neighbors(i)
		if len(nbrs) < m.MinPts {
			labels[i] = noiseLabel
			continue
		}
		cluster++
		labels[i] = cluster

		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noiseLabel {
				labels[j] = cluster // border point
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			jNbrs := neighbors(j)
			if len(jNbrs) >= m.MinPts {
				queue = append(queue, jNbrs...)
			}
		}
	}
	return labels
}

func (m *DensityCluster) markTrained() {
	m.trained = m.Eps > 0
}

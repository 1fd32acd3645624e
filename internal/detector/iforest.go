package detector

import (
	"math"
	"math/rand"
)

// IsolationForest isolates anomalies with an ensemble of random
// partition trees: records that separate from the rest in few splits
// score high. Fields are exported for gob serialization.
type IsolationForest struct {
	NTrees        int
	SampleSize    int
	Contamination float64
	Threshold     float64
	MaxDepth      int
	AvgPath       float64
	Trees         []*IsoTree
	Seed          int64

	trained bool
}

// IsoTree is a single isolation tree.
type IsoTree struct {
	Root *IsoNode
}

// IsoNode is one node of an isolation tree. Leaves have nil children
// and record how many training samples reached them.
type IsoNode struct {
	SplitFeature int
	SplitValue   float64
	Left         *IsoNode
	Right        *IsoNode
	Size         int
}

// NewIsolationForest creates a forest with the given ensemble size and
// subsample per tree.
func NewIsolationForest(nTrees, sampleSize int, contamination float64, seed int64) *IsolationForest {
	if nTrees <= 0 {
		nTrees = 100
	}
	if sampleSize <= 0 {
		sampleSize = 256
	}
	return &IsolationForest{
		NTrees:        nTrees,
		SampleSize:    sampleSize,
		Contamination: contamination,
		Threshold:     0.5,
		Seed:          seed,
	}
}

func (f *IsolationForest) Name() string { return AlgoIsolationForest }

// Fit builds the trees on seeded subsamples and derives the flagging
// threshold from the contamination fraction.
func (f *IsolationForest) Fit(data [][]float64) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return ErrEmptyFeatures
	}
	rng := rand.New(rand.NewSource(f.Seed))

	nSamples := len(data)
	nFeatures := len(data[0])
	sampleSize := f.SampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.MaxDepth = int(math.Ceil(math.Log2(float64(sampleSize))))
	if f.MaxDepth < 1 {
		f.MaxDepth = 1
	}

	f.Trees = make([]*IsoTree, f.NTrees)
	for i := 0; i < f.NTrees; i++ {
		indices := rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.Trees[i] = &IsoTree{Root: f.buildNode(rng, sample, nFeatures, 0)}
	}

	f.AvgPath = harmonicPathLength(float64(sampleSize))
	f.trained = true

	if f.Contamination > 0 {
		scores, _, err := f.Score(data)
		if err != nil {
			return err
		}
		f.Threshold = scoreQuantile(scores, 1-f.Contamination)
	}
	return nil
}

func (f *IsolationForest) buildNode(rng *rand.Rand, data [][]float64, nFeatures, depth int) *IsoNode {
	n := len(data)
	if depth >= f.MaxDepth || n <= 1 {
		return &IsoNode{Size: n}
	}

	feature := rng.Intn(nFeatures)
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &IsoNode{Size: n}
	}

	splitValue := minVal + rng.Float64()*(maxVal-minVal)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &IsoNode{
		SplitFeature: feature,
		SplitValue:   splitValue,
		Left:         f.buildNode(rng, left, nFeatures, depth+1),
		Right:        f.buildNode(rng, right, nFeatures, depth+1),
	}
}

// Score computes the isolation score 2^(-E[path]/c(n)) per record.
func (f *IsolationForest) Score(data [][]float64) ([]float64, []bool, error) {
	if !f.trained && f.Trees == nil {
		return nil, nil, ErrNotTrained
	}
	scores := make([]float64, len(data))
	flags := make([]bool, len(data))
	for i, sample := range data {
		var total float64
		for _, tree := range f.Trees {
			total += isoPathLength(sample, tree.Root, 0)
		}
		avg := total / float64(len(f.Trees))
		scores[i] = math.Pow(2, -avg/f.AvgPath)
		flags[i] = scores[i] >= f.Threshold
	}
	return scores, flags, nil
}

func isoPathLength(sample []float64, n *IsoNode, depth int) float64 {
	if n.Left == nil && n.Right == nil {
		return float64(depth) + harmonicPathLength(float64(n.Size))
	}
	if sample[n.SplitFeature] < n.SplitValue {
		return isoPathLength(sample, n.Left, depth+1)
	}
	return isoPathLength(sample, n.Right, depth+1)
}

// harmonicPathLength is the average unsuccessful-search path length of
// a BST with n nodes: c(n) = 2*H(n-1) - 2*(n-1)/n.
func harmonicPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// markTrained restores the in-memory trained flag after gob decode.
func (f *IsolationForest) markTrained() {
	f.trained = len(f.Trees) > 0
}

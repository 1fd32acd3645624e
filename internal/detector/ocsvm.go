package detector

import (
	"math/rand"
)

// OneClassSVM learns a spherical boundary around the training mass
// (nu-SVDD formulation) by seeded stochastic gradient descent. Roughly
// a nu fraction of training records ends up outside the boundary.
// Fields are exported for gob serialization.
type OneClassSVM struct {
	Nu            float64
	Epochs        int
	LearningRate  float64
	Contamination float64
	Threshold     float64
	Center        []float64
	RadiusSq      float64
	Seed          int64

	trained bool
}

// NewOneClassSVM creates the boundary estimator with the given nu.
func NewOneClassSVM(nu float64, epochs int, contamination float64, seed int64) *OneClassSVM {
	if nu <= 0 || nu >= 1 {
		nu = 0.05
	}
	if epochs <= 0 {
		epochs = 20
	}
	return &OneClassSVM{
		Nu:            nu,
		Epochs:        epochs,
		LearningRate:  0.1,
		Contamination: contamination,
		Threshold:     0.5,
		Seed:          seed,
	}
}

func (m *OneClassSVM) Name() string { return AlgoOneClassSVM }

// Fit minimizes R^2 + (1/(nu*n)) * sum(max(0, ||x-a||^2 - R^2)) over
// the center a and squared radius R^2.
func (m *OneClassSVM) Fit(data [][]float64) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return ErrEmptyFeatures
	}
	rng := rand.New(rand.NewSource(m.Seed))
	n := len(data)
	p := len(data[0])

	// Start from the sample mean and the nu-quantile of distances.
	m.Center = make([]float64, p)
	for _, row := range data {
		for j, v := range row {
			m.Center[j] += v
		}
	}
	for j := range m.Center {
		m.Center[j] /= float64(n)
	}

	dists := make([]float64, n)
	for i, row := range data {
		dists[i] = sqDist(row, m.Center)
	}
	m.RadiusSq = scoreQuantile(dists, 1-m.Nu)

	order := rng.Perm(n)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		eta := m.LearningRate / (1 + float64(epoch))
		for _, i := range order {
			row := data[i]
			d2 := sqDist(row, m.Center)

			gradR := 1.0 / float64(n)
			if d2 > m.RadiusSq {
				gradR -= 1.0 / (m.Nu * float64(n))
				scale := 2 * eta / (m.Nu * float64(n))
				for j := range m.Center {
					m.Center[j] += scale * (row[j] - m.Center[j])
				}
			}
			m.RadiusSq -= eta * gradR * float64(n)
			if m.RadiusSq < 1e-12 {
				m.RadiusSq = 1e-12
			}
		}
	}
	m.trained = true

	if m.Contamination > 0 {
		scores, _, err := m.Score(data)
		if err != nil {
			return err
		}
		m.Threshold = scoreQuantile(scores, 1-m.Contamination)
	}
	return nil
}

// Score maps squared distance against the boundary to [0, 1): 0.5 on
// the boundary, approaching 1 far outside it.
func (m *OneClassSVM) Score(data [][]float64) ([]float64, []bool, error) {
	if m.Center == nil {
		return nil, nil, ErrNotTrained
	}
	scores := make([]float64, len(data))
	flags := make([]bool, len(data))
	for i, row := range data {
		d2 := sqDist(row, m.Center)
		scores[i] = d2 / (d2 + m.RadiusSq)
		flags[i] = scores[i] >= m.Threshold
	}
	return scores, flags, nil
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range b {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (m *OneClassSVM) markTrained() {
	m.trained = m.Center != nil
}

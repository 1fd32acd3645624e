package detector

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// EllipticEnvelope models the training mass as a single Gaussian and
// scores by Mahalanobis distance; the chi-squared CDF of the squared
// distance gives a probability-like score in [0, 1). Fields are
// exported for gob serialization.
type EllipticEnvelope struct {
	Contamination float64
	Threshold     float64
	Mean          []float64
	Precision     []float64 // row-major p x p inverse covariance
	Dims          int

	trained bool
}

// NewEllipticEnvelope creates the Gaussian envelope estimator.
func NewEllipticEnvelope(contamination float64) *EllipticEnvelope {
	return &EllipticEnvelope{
		Contamination: contamination,
		Threshold:     0.975,
	}
}

func (m *EllipticEnvelope) Name() string { return AlgoEllipticEnvelope }

// Fit estimates mean and a ridge-regularized covariance, inverting it
// through a Cholesky factorization.
func (m *EllipticEnvelope) Fit(data [][]float64) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return ErrEmptyFeatures
	}
	n := len(data)
	p := len(data[0])
	m.Dims = p

	m.Mean = make([]float64, p)
	for _, row := range data {
		for j, v := range row {
			m.Mean[j] += v
		}
	}
	for j := range m.Mean {
		m.Mean[j] /= float64(n)
	}

	cov := mat.NewSymDense(p, nil)
	for _, row := range data {
		for a := 0; a < p; a++ {
			da := row[a] - m.Mean[a]
			for b := a; b < p; b++ {
				cov.SetSym(a, b, cov.At(a, b)+da*(row[b]-m.Mean[b]))
			}
		}
	}
	// Ridge term keeps the factorization positive definite when the
	// scaled features are nearly collinear.
	var trace float64
	for a := 0; a < p; a++ {
		trace += cov.At(a, a) / float64(n)
	}
	ridge := 1e-3 * trace / float64(p)
	if ridge <= 0 {
		ridge = 1e-6
	}
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			v := cov.At(a, b) / float64(n)
			if a == b {
				v += ridge
			}
			cov.SetSym(a, b, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return ErrEmptyFeatures
	}
	var prec mat.SymDense
	if err := chol.InverseTo(&prec); err != nil {
		return err
	}

	m.Precision = make([]float64, p*p)
	for a := 0; a < p; a++ {
		for b := 0; b < p; b++ {
			m.Precision[a*p+b] = prec.At(a, b)
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

// Score returns ChiSquared_p.CDF(mahalanobis^2) per record.
func (m *EllipticEnvelope) Score(data [][]float64) ([]float64, []bool, error) {
	if m.Mean == nil {
		return nil, nil, ErrNotTrained
	}
	chi := distuv.ChiSquared{K: float64(m.Dims)}
	scores := make([]float64, len(data))
	flags := make([]bool, len(data))
	for i, row := range data {
		d2 := m.mahalanobisSq(row)
		scores[i] = chi.CDF(d2)
		flags[i] = scores[i] >= m.Threshold
	}
	return scores, flags, nil
}

func (m *EllipticEnvelope) mahalanobisSq(row []float64) float64 {
	p := m.Dims
	diff := make([]float64, p)
	for j := 0; j < p; j++ {
		diff[j] = row[j] - m.Mean[j]
	}
	var d2 float64
	for a := 0; a < p; a++ {
		var dot float64
		for b := 0; b < p; b++ {
			dot += m.Precision[a*p+b] * diff[b]
		}
		d2 += diff[a] * dot
	}
	if d2 < 0 {
		d2 = 0
	}
	return d2
}

func (m *EllipticEnvelope) markTrained() {
	m.trained = m.Mean != nil
}

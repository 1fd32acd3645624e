package detector

import (
	"errors"
	"math"
)

// StandardScaler centers each feature column to zero mean and unit
// variance. One scaler is fitted per scoring model at train time and
// serialized into the model bundle. Fields are exported for gob.
type StandardScaler struct {
	Means  []float64
	Scales []float64
}

// Fit computes per-column mean and scale from the training rows.
func (s *StandardScaler) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("detector: scaler fit on empty data")
	}
	p := len(data[0])
	s.Means = make([]float64, p)
	s.Scales = make([]float64, p)

	for _, row := range data {
		for j, v := range row {
			s.Means[j] += v
		}
	}
	n := float64(len(data))
	for j := range s.Means {
		s.Means[j] /= n
	}

	for _, row := range data {
		for j, v := range row {
			d := v - s.Means[j]
			s.Scales[j] += d * d
		}
	}
	for j := range s.Scales {
		s.Scales[j] = math.Sqrt(s.Scales[j] / n)
		// Constant columns scale to 1 so transform maps them to zero.
		if s.Scales[j] == 0 {
			s.Scales[j] = 1
		}
	}
	return nil
}

// Transform returns scaled copies of the input rows. Rows wider than
// the fitted column count are truncated; narrower rows are an error.
func (s *StandardScaler) Transform(data [][]float64) ([][]float64, error) {
	if s.Means == nil {
		return nil, errors.New("detector: scaler not fitted")
	}
	out := make([][]float64, len(data))
	for i, row := range data {
		if len(row) < len(s.Means) {
			return nil, errors.New("detector: row narrower than fitted scaler")
		}
		scaled := make([]float64, len(s.Means))
		for j := range s.Means {
			scaled[j] = (row[j] - s.Means[j]) / s.Scales[j]
		}
		out[i] = scaled
	}
	return out, nil
}

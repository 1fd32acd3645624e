package detector

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// evaluateModel scores one model's training-time flags against the
// optional ground truth. Labels follow the {-1, +1} convention with
// -1 marking an anomaly. Without labels, accuracy is approximated as
// one minus the observed anomaly rate and precision/recall stay zero.
func evaluateModel(name string, flags []bool, labels []int) domain.ModelMetrics {
	mm := domain.ModelMetrics{
		ModelName: name,
		Algorithm: name,
	}

	flagged := 0
	for _, f := range flags {
		if f {
			flagged++
		}
	}
	n := len(flags)
	if n > 0 {
		mm.AnomalyRate = float64(flagged) / float64(n)
	}

	if labels == nil {
		mm.Accuracy = 1 - mm.AnomalyRate
		return mm
	}

	mm.LabelsProvided = true
	var tp, fp, tn, fn float64
	for i, f := range flags {
		actual := labels[i] == domain.LabelAnomaly
		switch {
		case f && actual:
			tp++
		case f && !actual:
			fp++
		case !f && !actual:
			tn++
		default:
			fn++
		}
	}

	if total := tp + fp + tn + fn; total > 0 {
		mm.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		mm.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		mm.Recall = tp / (tp + fn)
	}
	if mm.Precision+mm.Recall > 0 {
		mm.F1Score = 2 * mm.Precision * mm.Recall / (mm.Precision + mm.Recall)
	}
	if fp+tn > 0 {
		mm.FalsePosRate = fp / (fp + tn)
	}
	return mm
}

package features

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// amountFeatures derives per-record amount transforms: raw value,
// magnitude encodings, and debit/credit breakdowns when present.
func (e *Engineer) amountFeatures(b *builder, records []domain.Transaction, amounts []float64) {
	n := len(records)

	absAmount := make([]float64, n)
	logAmount := make([]float64, n)
	sign := make([]float64, n)
	magnitude := make([]float64, n)
	for i, a := range amounts {
		absAmount[i] = math.Abs(a)
		logAmount[i] = math.Log1p(absAmount[i])
		switch {
		case a > 0:
			sign[i] = 1
		case a < 0:
			sign[i] = -1
		}
		if absAmount[i] >= 1 {
			magnitude[i] = math.Floor(math.Log10(absAmount[i]))
		}
	}

	b.add(FeatAmount, amounts)
	b.add("abs_amount", absAmount)
	b.add("log_amount", logAmount)
	b.add("amount_sign", sign)
	b.add("amount_magnitude", magnitude)

	hasDebitCredit := false
	for i := range records {
		if records[i].DebitAmount != nil || records[i].CreditAmount != nil {
			hasDebitCredit = true
			break
		}
	}
	if !hasDebitCredit {
		return
	}

	debit := make([]float64, n)
	credit := make([]float64, n)
	net := make([]float64, n)
	isDebit := make([]float64, n)
	isCredit := make([]float64, n)
	for i := range records {
		if d := records[i].DebitAmount; d != nil {
			debit[i] = *d
			if *d > 0 {
				isDebit[i] = 1
			}
		}
		if c := records[i].CreditAmount; c != nil {
			credit[i] = *c
			if *c > 0 {
				isCredit[i] = 1
			}
		}
		net[i] = debit[i] - credit[i]
	}

	b.add("debit_amount", debit)
	b.add("credit_amount", credit)
	b.add("net_amount", net)
	b.add("is_debit", isDebit)
	b.add("is_credit", isCredit)
}

package reasons

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
)

// DefaultRules returns the built-in diagnostic rule set. Thresholds
// mirror the reviewer heuristics used in transaction investigations.
func DefaultRules() []domain.ReasonRule {
	return []domain.ReasonRule{
		{
			ID:          "unusual-amount",
			Description: "amount far from the batch mean",
			Expression:  fmt.Sprintf(`%q in f && (f[%q] > 3.0 || f[%q] < -3.0)`, features.FeatAmountZScore, features.FeatAmountZScore, features.FeatAmountZScore),
			Reason:      "unusual amount",
			Enabled:     true,
		},
		{
			ID:          "weekend-transaction",
			Description: "posted on a weekend",
			Expression:  fmt.Sprintf(`%q in f && f[%q] == 1.0`, features.FeatIsWeekend, features.FeatIsWeekend),
			Reason:      "weekend transaction",
			Enabled:     true,
		},
		{
			ID:          "low-account-activity",
			Description: "account rarely seen in the batch",
			Expression:  fmt.Sprintf(`%q in f && f[%q] < 5.0`, features.FeatAccountFrequency, features.FeatAccountFrequency),
			Reason:      "low account activity",
			Enabled:     true,
		},
		{
			ID:          "above-recent-average",
			Description: "amount well above the trailing mean",
			Expression:  fmt.Sprintf(`%q in f && f[%q] > 3.0`, features.FeatAmountToRolling7, features.FeatAmountToRolling7),
			Reason:      "amount significantly above recent average",
			Enabled:     true,
		},
		{
			ID:          "off-hours",
			Description: "posted before 06:00 or after 22:00",
			Expression:  fmt.Sprintf(`%q in f && f[%q] == 1.0`, features.FeatIsOffHours, features.FeatIsOffHours),
			Reason:      "transaction outside normal hours",
			Enabled:     true,
		},
		{
			ID:          "rapid-succession",
			Description: "under a minute after the previous record",
			Expression:  fmt.Sprintf(`%q in f && f[%q] == 1.0`, features.FeatIsRapidSuccession, features.FeatIsRapidSuccession),
			Reason:      "rapid succession of transactions",
			Enabled:     true,
		},
	}
}

// NewDefaultEngine builds an engine preloaded with DefaultRules.
func NewDefaultEngine() (*Engine, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := e.LoadRules(DefaultRules()); err != nil {
		return nil, err
	}
	return e, nil
}

package reasons

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestDefaultEngine(t *testing.T) {
	e, err := NewDefaultEngine()
	if err != nil {
		t.Fatalf("NewDefaultEngine failed: %v", err)
	}
	if e.RuleCount() != len(DefaultRules()) {
		t.Errorf("expected %d rules, got %d", len(DefaultRules()), e.RuleCount())
	}
}

func TestExplain(t *testing.T) {
	e, err := NewDefaultEngine()
	if err != nil {
		t.Fatalf("NewDefaultEngine failed: %v", err)
	}

	t.Run("NoTriggersFallsBackToGeneric", func(t *testing.T) {
		reasons := e.Explain(map[string]float64{})
		if len(reasons) != 1 || reasons[0] != domain.GenericAnomalyReason {
			t.Errorf("expected generic fallback, got %v", reasons)
		}
	})

	t.Run("UnusualAmount", func(t *testing.T) {
		reasons := e.Explain(map[string]float64{"amount_zscore": 4.2})
		if len(reasons) != 1 || reasons[0] != "unusual amount" {
			t.Errorf("expected [unusual amount], got %v", reasons)
		}

		reasons = e.Explain(map[string]float64{"amount_zscore": -4.2})
		if len(reasons) != 1 || reasons[0] != "unusual amount" {
			t.Errorf("expected negative z-score to trigger, got %v", reasons)
		}
	})

	t.Run("GuardSkipsMissingColumns", func(t *testing.T) {
		// Without the guarded column the rule must stay silent instead
		// of erroring the run.
		reasons := e.Explain(map[string]float64{"amount": 999999})
		if len(reasons) != 1 || reasons[0] != domain.GenericAnomalyReason {
			t.Errorf("expected generic fallback for unguarded map, got %v", reasons)
		}
	})

	t.Run("BelowThresholdStaysSilent", func(t *testing.T) {
		reasons := e.Explain(map[string]float64{
			"amount_zscore": 1.5,
			"is_weekend":    0,
		})
		if len(reasons) != 1 || reasons[0] != domain.GenericAnomalyReason {
			t.Errorf("expected no rule to trigger, got %v", reasons)
		}
	})

	t.Run("MultipleTriggersInRuleOrder", func(t *testing.T) {
		reasons := e.Explain(map[string]float64{
			"amount_zscore": -5,
			"is_weekend":    1,
			"is_off_hours":  1,
		})
		want := []string{"unusual amount", "weekend transaction", "transaction outside normal hours"}
		if len(reasons) != len(want) {
			t.Fatalf("expected %d reasons, got %v", len(want), reasons)
		}
		for i := range want {
			if reasons[i] != want[i] {
				t.Errorf("reason %d: expected %q, got %q", i, want[i], reasons[i])
			}
		}
	})

	t.Run("LowAccountActivity", func(t *testing.T) {
		reasons := e.Explain(map[string]float64{"account_frequency": 2})
		if len(reasons) != 1 || reasons[0] != "low account activity" {
			t.Errorf("expected [low account activity], got %v", reasons)
		}
	})
}

func TestLoadRules(t *testing.T) {
	t.Run("SkipsDisabled", func(t *testing.T) {
		e, err := NewEngine()
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		err = e.LoadRules([]domain.ReasonRule{
			{ID: "on", Expression: `"x" in f && f["x"] > 1.0`, Reason: "x high", Enabled: true},
			{ID: "off", Expression: `"y" in f`, Reason: "y present", Enabled: false},
		})
		if err != nil {
			t.Fatalf("LoadRules failed: %v", err)
		}
		if e.RuleCount() != 1 {
			t.Errorf("expected 1 loaded rule, got %d", e.RuleCount())
		}
	})

	t.Run("CompileError", func(t *testing.T) {
		e, _ := NewEngine()
		err := e.LoadRule(domain.ReasonRule{ID: "broken", Expression: `f[`, Reason: "nope", Enabled: true})
		if err == nil {
			t.Error("expected compile error for malformed expression")
		}
	})

	t.Run("NonBoolExpression", func(t *testing.T) {
		e, _ := NewEngine()
		err := e.LoadRule(domain.ReasonRule{ID: "double", Expression: `1.0 + 2.0`, Reason: "nope", Enabled: true})
		if err == nil {
			t.Error("expected error for non-bool expression")
		}
	})
}

func TestCustomRule(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	err = e.LoadRule(domain.ReasonRule{
		ID:         "round-amount",
		Expression: `"is_round_1000" in f && f["is_round_1000"] == 1.0`,
		Reason:     "suspiciously round amount",
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	reasons := e.Explain(map[string]float64{"is_round_1000": 1})
	if len(reasons) != 1 || reasons[0] != "suspiciously round amount" {
		t.Errorf("expected custom rule to trigger, got %v", reasons)
	}
}

// Package reasons provides the CEL-Go based diagnostic engine that
// turns a record's feature values into short human-readable anomaly
// reasons. Reasons are derived independently of the ensemble vote.
package reasons

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine evaluates diagnostic reason rules against feature vectors.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []*compiledRule
}

// compiledRule holds a pre-compiled CEL program, kept in load order so
// emitted reasons are deterministic.
type compiledRule struct {
	rule    domain.ReasonRule
	program cel.Program
}

// NewEngine creates a diagnostic engine. Expressions see a single map
// variable f from feature name to value; rules guard with `"name" in f`
// because pruning may remove columns from a given batch.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("f", cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Engine{env: env}, nil
}

// LoadRule compiles and appends a rule.
func (e *Engine) LoadRule(rule domain.ReasonRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}
	e.compiled = append(e.compiled, compiled)
	return nil
}

// LoadRules compiles and loads the enabled rules in order.
func (e *Engine) LoadRules(rules []domain.ReasonRule) error {
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if err := e.LoadRule(r); err != nil {
			return err
		}
	}
	return nil
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Explain evaluates every rule against the feature map and returns the
// triggered reasons in rule order. The list is never empty: when no
// rule triggers, the generic reason is returned alone. Rules that fail
// to evaluate are skipped; diagnostics must not fail a detection run.
func (e *Engine) Explain(features map[string]float64) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	activation := map[string]any{"f": features}

	var out []string
	for _, c := range e.compiled {
		val, _, err := c.program.Eval(activation)
		if err != nil {
			continue
		}
		if b, ok := val.(types.Bool); ok && bool(b) {
			out = append(out, c.rule.Reason)
		}
	}
	if len(out) == 0 {
		out = append(out, domain.GenericAnomalyReason)
	}
	return out
}

func (e *Engine) compileRule(rule domain.ReasonRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile reason rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("reason rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for reason rule %s: %w", rule.ID, err)
	}
	return &compiledRule{rule: rule, program: program}, nil
}

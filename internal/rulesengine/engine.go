package rulesengine

import (
	"sync"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

// Engine holds the current rule set in memory and dispatches to the flat
// or phased evaluator. Handlers call EvaluatePhased through this facade so
// reloading rules (admin edit, file change) doesn't require re-wiring
// every call site.
type Engine struct {
	mu    sync.RWMutex
	rules []ruledom.Rule
}

// NewEngine builds an Engine seeded with rules.
func NewEngine(rules []ruledom.Rule) *Engine {
	return &Engine{rules: rules}
}

// Reload atomically replaces the in-memory rule set.
func (e *Engine) Reload(rules []ruledom.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = rules
}

// Rules returns a snapshot of the current rule set.
func (e *Engine) Rules() []ruledom.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp := make([]ruledom.Rule, len(e.rules))
	copy(cp, e.rules)

	return cp
}

// Evaluate runs the phased evaluator — the discipline every intent
// handler in SPEC_FULL.md relies on (validate/enrich/decide) — against
// the current rule set.
func (e *Engine) Evaluate(ctx ruledom.Context) ruledom.Result {
	return EvaluatePhased(e.Rules(), ctx)
}

// EvaluateFlatMode runs the simpler flat evaluator, exposed for callers
// (and tests) that don't need phased semantics.
func (e *Engine) EvaluateFlatMode(ctx ruledom.Context) ruledom.Result {
	return EvaluateFlat(e.Rules(), ctx)
}

package rulesengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

func TestEvaluateCondition(t *testing.T) {
	data := map[string]any{
		"vendor": map[string]any{"credit_limit": 5000.0, "name": "  ", "tier": "gold"},
		"tags":   []any{"urgent"},
	}

	cases := []struct {
		name string
		cond ruledom.Condition
		want bool
	}{
		{"exists true", ruledom.Condition{Field: "vendor.credit_limit", Operator: ruledom.OpExists}, true},
		{"exists false", ruledom.Condition{Field: "vendor.missing", Operator: ruledom.OpExists}, false},
		{"not_empty on blank string", ruledom.Condition{Field: "vendor.name", Operator: ruledom.OpNotEmpty}, false},
		{"not_empty on missing field", ruledom.Condition{Field: "vendor.missing", Operator: ruledom.OpNotEmpty}, false},
		{"eq numeric", ruledom.Condition{Field: "vendor.credit_limit", Operator: ruledom.OpEq, Value: 5000.0}, true},
		{"eq string vs number loose", ruledom.Condition{Field: "vendor.credit_limit", Operator: ruledom.OpEq, Value: "5000"}, true},
		{"neq", ruledom.Condition{Field: "vendor.tier", Operator: ruledom.OpNeq, Value: "silver"}, true},
		{"gt true", ruledom.Condition{Field: "vendor.credit_limit", Operator: ruledom.OpGT, Value: 1000.0}, true},
		{"gt false", ruledom.Condition{Field: "vendor.credit_limit", Operator: ruledom.OpGT, Value: 10000.0}, false},
		{"in set", ruledom.Condition{Field: "vendor.tier", Operator: ruledom.OpIn, Value: []any{"gold", "platinum"}}, true},
		{"not_in set", ruledom.Condition{Field: "vendor.tier", Operator: ruledom.OpNotIn, Value: []any{"silver"}}, true},
		{"matches regex", ruledom.Condition{Field: "vendor.tier", Operator: ruledom.OpMatches, Value: "^go"}, true},
		{"matches invalid regex is false", ruledom.Condition{Field: "vendor.tier", Operator: ruledom.OpMatches, Value: "(["}, false},
		{"unknown operator is false", ruledom.Condition{Field: "vendor.tier", Operator: "bogus"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evaluateCondition(data, tc.cond))
		})
	}
}

func TestEvaluateAll_Conjunction(t *testing.T) {
	data := map[string]any{"amount": 500.0, "status": "open"}

	all := []ruledom.Condition{
		{Field: "amount", Operator: ruledom.OpGT, Value: 100.0},
		{Field: "status", Operator: ruledom.OpEq, Value: "open"},
	}
	assert.True(t, evaluateAll(data, all))

	oneFails := []ruledom.Condition{
		{Field: "amount", Operator: ruledom.OpGT, Value: 100.0},
		{Field: "status", Operator: ruledom.OpEq, Value: "closed"},
	}
	assert.False(t, evaluateAll(data, oneFails))

	assert.True(t, evaluateAll(data, nil))
}

// Package rulesengine implements C4: declarative condition evaluation
// over dotted-path data, priority-ordered, phased (validate → enrich →
// decide), with per-rule effective-dating and trace generation. The
// engine is a pure function over (rules, context) -> result, per
// SPEC_FULL.md's "rules as data" design note.
package rulesengine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

// dottedLookup resolves a dotted path like "vendor.credit_limit" against
// a nested map, mirroring the source's schemaless-map traversal.
func dottedLookup(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")

	var cur any = data

	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		v, ok := m[part]
		if !ok {
			return nil, false
		}

		cur = v
	}

	return cur, true
}

// evaluateCondition evaluates a single condition against data. Type-unsafe
// comparisons and invalid regex patterns evaluate false rather than
// throwing, per §4.4.
func evaluateCondition(data map[string]any, cond ruledom.Condition) bool {
	value, exists := dottedLookup(data, cond.Field)

	switch cond.Operator {
	case ruledom.OpExists:
		return exists
	case ruledom.OpNotEmpty:
		if !exists {
			return false
		}

		return !isEmpty(value)
	case ruledom.OpEq:
		return exists && looseEqual(value, cond.Value)
	case ruledom.OpNeq:
		return !exists || !looseEqual(value, cond.Value)
	case ruledom.OpIn:
		return exists && containsAny(cond.Value, value)
	case ruledom.OpNotIn:
		return !exists || !containsAny(cond.Value, value)
	case ruledom.OpGT, ruledom.OpLT, ruledom.OpGTE, ruledom.OpLTE:
		if !exists {
			return false
		}

		return compareNumeric(value, cond.Value, cond.Operator)
	case ruledom.OpMatches:
		if !exists {
			return false
		}

		s, ok := value.(string)
		if !ok {
			return false
		}

		pattern, ok := cond.Value.(string)
		if !ok {
			return false
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}

		return re.MatchString(s)
	default:
		return false
	}
}

// evaluateAll evaluates the conjunction of a rule's conditions.
func evaluateAll(data map[string]any, conditions []ruledom.Condition) bool {
	for _, c := range conditions {
		if !evaluateCondition(data, c) {
			return false
		}
	}

	return true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case nil:
		return true
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	return toString(a) == toString(b)
}

func containsAny(set any, value any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}

	for _, item := range items {
		if looseEqual(item, value) {
			return true
		}
	}

	return false
}

func compareNumeric(value, target any, op ruledom.Operator) bool {
	vf, vok := toFloat(value)
	tf, tok := toFloat(target)

	if !vok || !tok {
		return false
	}

	switch op {
	case ruledom.OpGT:
		return vf > tf
	case ruledom.OpLT:
		return vf < tf
	case ruledom.OpGTE:
		return vf >= tf
	case ruledom.OpLTE:
		return vf <= tf
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		f, ok := toFloat(v)
		if !ok {
			return ""
		}

		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

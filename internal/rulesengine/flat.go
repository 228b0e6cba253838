package rulesengine

import (
	"sort"
	"time"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

// EvaluateFlat filters rules matching the context's intent type and
// effective-date window, sorts by priority ascending, and evaluates each
// in turn. reject short-circuits; route_for_approval sets the decision
// without short-circuiting, so a later reject still wins.
func EvaluateFlat(rules []ruledom.Rule, ctx ruledom.Context) ruledom.Result {
	matching := make([]ruledom.Rule, 0, len(rules))

	for _, r := range rules {
		if r.IntentType == ctx.IntentType {
			matching = append(matching, r)
		}
	}

	sort.SliceStable(matching, func(i, j int) bool { return matching[i].Priority < matching[j].Priority })

	result := ruledom.Result{Decision: ruledom.DecisionApprove}

	for _, r := range matching {
		if !withinEffectiveWindow(r, ctx.EffectiveDate) {
			result.Traces = append(result.Traces, ruledom.Trace{
				RuleID: r.ID, RuleName: r.Name, Result: ruledom.ResultSkippedInactive,
			})

			continue
		}

		start := time.Now()
		fired := evaluateAll(ctx.Data, r.Conditions)
		duration := time.Since(start).Microseconds()

		if !fired {
			result.Traces = append(result.Traces, ruledom.Trace{
				RuleID: r.ID, RuleName: r.Name, Result: ruledom.ResultNotFired, DurationUS: duration,
			})

			continue
		}

		trace := ruledom.Trace{
			RuleID: r.ID, RuleName: r.Name, Result: ruledom.ResultFired,
			ActionsTaken: []string{string(r.Action)}, DurationUS: duration,
		}

		switch r.Action {
		case ruledom.ActionReject:
			trace.Reason = r.RejectionMessage
			result.Traces = append(result.Traces, trace)
			result.Decision = ruledom.DecisionReject
			result.RejectionMessage = r.RejectionMessage

			return result
		case ruledom.ActionRouteForApproval:
			result.Decision = ruledom.DecisionRouteForApproval
			result.RequiredApproverRole = r.ApproverRole
		case ruledom.ActionEnrich:
			if result.EnrichedContext == nil {
				result.EnrichedContext = make(map[string]any, len(r.EnrichFields))
			}

			for k, v := range r.EnrichFields {
				result.EnrichedContext[k] = v
			}
		}

		result.Traces = append(result.Traces, trace)
	}

	return result
}

func withinEffectiveWindow(r ruledom.Rule, effectiveDate string) bool {
	if effectiveDate == "" {
		return true
	}

	if r.EffectiveFrom != nil && effectiveDate < *r.EffectiveFrom {
		return false
	}

	if r.EffectiveTo != nil && effectiveDate > *r.EffectiveTo {
		return false
	}

	return true
}

package rulesengine

import (
	"sort"
	"time"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

var phaseOrder = []ruledom.Phase{ruledom.PhaseValidate, ruledom.PhaseEnrich, ruledom.PhaseDecide}

// EvaluatePhased runs the three fixed phases in order: validate, enrich,
// decide. In enrich, only enrich actions execute; other actions are
// not_applicable. Outside enrich, enrich actions are blocked the same
// way. A reject in any phase halts all remaining phases;
// route_for_approval persists as the decision without halting.
func EvaluatePhased(rules []ruledom.Rule, ctx ruledom.Context) ruledom.Result {
	matching := make([]ruledom.Rule, 0, len(rules))

	for _, r := range rules {
		if r.IntentType == ctx.IntentType {
			matching = append(matching, r)
		}
	}

	sort.SliceStable(matching, func(i, j int) bool { return matching[i].Priority < matching[j].Priority })

	data := ctx.Data
	if data == nil {
		data = map[string]any{}
	} else {
		cp := make(map[string]any, len(data))
		for k, v := range data {
			cp[k] = v
		}
		data = cp
	}

	result := ruledom.Result{Decision: ruledom.DecisionApprove}

	for _, phase := range phaseOrder {
		for _, r := range matching {
			if r.EffectivePhase() != phase {
				continue
			}

			if !withinEffectiveWindow(r, ctx.EffectiveDate) {
				result.Traces = append(result.Traces, ruledom.Trace{
					RuleID: r.ID, RuleName: r.Name, Phase: string(phase), Result: ruledom.ResultSkippedInactive,
				})

				continue
			}

			blocked := (phase == ruledom.PhaseEnrich) != (r.Action == ruledom.ActionEnrich)

			start := time.Now()
			fired := evaluateAll(data, r.Conditions)
			duration := time.Since(start).Microseconds()

			if !fired {
				result.Traces = append(result.Traces, ruledom.Trace{
					RuleID: r.ID, RuleName: r.Name, Phase: string(phase), Result: ruledom.ResultNotFired, DurationUS: duration,
				})

				continue
			}

			if blocked {
				reason := string(r.Action) + "_blocked_in_enrich_phase"
				if r.Action == ruledom.ActionEnrich {
					reason = "enrich_blocked_outside_enrich_phase"
				}

				result.Traces = append(result.Traces, ruledom.Trace{
					RuleID: r.ID, RuleName: r.Name, Phase: string(phase), Result: ruledom.ResultNotApplicable,
					Reason: reason, DurationUS: duration,
				})

				continue
			}

			trace := ruledom.Trace{
				RuleID: r.ID, RuleName: r.Name, Phase: string(phase), Result: ruledom.ResultFired,
				ActionsTaken: []string{string(r.Action)}, DurationUS: duration,
			}

			switch r.Action {
			case ruledom.ActionReject:
				trace.Reason = r.RejectionMessage
				result.Traces = append(result.Traces, trace)
				result.Decision = ruledom.DecisionReject
				result.RejectionMessage = r.RejectionMessage
				result.EnrichedContext = data

				return result
			case ruledom.ActionRouteForApproval:
				result.Decision = ruledom.DecisionRouteForApproval
				result.RequiredApproverRole = r.ApproverRole
			case ruledom.ActionEnrich:
				for k, v := range r.EnrichFields {
					data[k] = v
				}
			}

			result.Traces = append(result.Traces, trace)
		}
	}

	result.EnrichedContext = data

	return result
}

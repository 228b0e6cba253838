// Package ruledom holds the declarative rule record and evaluation result
// types the rules engine (C4) operates over as plain data.
package ruledom

// Phase is one of the three fixed evaluation phases.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseEnrich   Phase = "enrich"
	PhaseDecide   Phase = "decide"
)

// Action is what a rule does when its conditions hold.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionRouteForApproval Action = "route_for_approval"
	ActionEnrich          Action = "enrich"
)

// Operator is one of the condition DSL's comparison operators.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpNotEmpty Operator = "not_empty"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpExists   Operator = "exists"
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
	OpGTE      Operator = "gte"
	OpLTE      Operator = "lte"
	OpMatches  Operator = "matches"
)

// Condition is one clause of a rule's conjunction: field is a dotted path
// into the evaluation context's data.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Rule is a declarative validation fragment, loaded from Postgres or from
// YAML/JSON rule files at startup.
type Rule struct {
	ID                string      `json:"id" yaml:"id"`
	Name              string      `json:"name" yaml:"name"`
	Description       string      `json:"description,omitempty" yaml:"description,omitempty"`
	Priority          int         `json:"priority" yaml:"priority"`
	IntentType        string      `json:"intent_type" yaml:"intent_type"`
	Phase             Phase       `json:"phase,omitempty" yaml:"phase,omitempty"`
	Conditions        []Condition `json:"conditions" yaml:"conditions"`
	Action            Action      `json:"action" yaml:"action"`
	RejectionMessage  string      `json:"rejection_message,omitempty" yaml:"rejection_message,omitempty"`
	ApproverRole      string      `json:"approver_role,omitempty" yaml:"approver_role,omitempty"`
	EnrichFields      map[string]any `json:"enrich_fields,omitempty" yaml:"enrich_fields,omitempty"`
	EffectiveFrom     *string     `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo       *string     `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
}

// EffectivePhase returns the rule's phase, defaulting unlabeled rules to
// validate per §4.4.
func (r Rule) EffectivePhase() Phase {
	if r.Phase == "" {
		return PhaseValidate
	}

	return r.Phase
}

// RuleFile is the top-level shape of a YAML/JSON rule file.
type RuleFile struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// TraceResult is the outcome recorded for a single rule evaluation.
type TraceResult string

const (
	ResultFired          TraceResult = "fired"
	ResultNotFired       TraceResult = "not_fired"
	ResultSkippedInactive TraceResult = "skipped_inactive"
	ResultNotApplicable  TraceResult = "not_applicable"
)

// Trace records one rule's evaluation outcome, embedded on the resulting
// event and surfaced on rejections.
type Trace struct {
	RuleID       string      `json:"rule_id"`
	RuleName     string      `json:"rule_name"`
	Phase        string      `json:"phase,omitempty"`
	Result       TraceResult `json:"result"`
	ActionsTaken []string    `json:"actions_taken,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	DurationUS   int64       `json:"duration_us"`
}

// Decision is the overall outcome of evaluating a rule set against a
// context.
type Decision string

const (
	DecisionApprove         Decision = "approve"
	DecisionReject          Decision = "reject"
	DecisionRouteForApproval Decision = "route_for_approval"
)

// Context is the input evaluated against a rule set: data is a shallow
// merge of the intent payload, handler-computed flags, and (when phased)
// progressively-enriched fields.
type Context struct {
	IntentType    string
	Data          map[string]any
	EffectiveDate string
}

// Result is the output of evaluating a rule set against a context.
type Result struct {
	Decision             Decision
	Traces                []Trace
	RejectionMessage      string
	RequiredApproverRole  string
	EnrichedContext       map[string]any
}

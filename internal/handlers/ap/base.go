// Package ap implements C10: the canonical accounts-payable intent
// handlers — vendor, item, purchase order, and invoice lifecycles — each
// following §4.10's scoped transaction discipline: open a transaction,
// short-circuit on a replayed idempotency key, validate and load the
// entities the intent concerns, evaluate the declarative rule set, and
// either reject, route for deferred approval, or mutate the entity graph,
// append the resulting event, and dispatch it to the projection engine —
// all inside the one transaction, committed once at the end.
package ap

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
	"github.com/mcarvalho21/nova-sub000/internal/entitygraph"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/intentstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/projectionengine"
	"github.com/mcarvalho21/nova-sub000/internal/rulesengine"
)

// Querier is the shared-transaction seam, aliased to C1's.
type Querier = eventstore.Querier

// Deps are the collaborators every AP handler is built from.
type Deps struct {
	DB          *platform.PostgresConnection
	Events      *eventstore.Store
	Entities    *entitygraph.Graph
	Rules       *rulesengine.Engine
	Projections *projectionengine.Engine
	Intents     *intentstore.Store
	Logger      platform.Logger
}

// Base is embedded by every intent handler in this package, giving each
// one the transaction-scoped helpers that implement §4.10's discipline.
type Base struct {
	Deps
}

// NewBase builds a Base from its collaborators, defaulting a nil logger.
func NewBase(deps Deps) Base {
	if deps.Logger == nil {
		deps.Logger = &platform.NoneLogger{}
	}

	return Base{Deps: deps}
}

func (b Base) beginTx(ctx context.Context) (*sql.Tx, error) {
	db, err := b.DB.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	return db.BeginTx(ctx, nil)
}

// idempotentReplay looks up a prior event appended under key for
// eventType, short-circuiting a retried request before it touches the
// entity graph a second time. Returns nil, nil when no replay is found.
func (b Base) idempotentReplay(ctx context.Context, tx *sql.Tx, eventType string, key *string) (*intentdom.Result, error) {
	if key == nil || strings.TrimSpace(*key) == "" {
		return nil, nil
	}

	existing, err := b.Events.FindByIdempotencyKey(ctx, tx, eventType, *key)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, nil
	}

	return &intentdom.Result{Success: true, EventID: existing.ID, Event: existing, Status: intentdom.StatusExecuted}, nil
}

// evaluate runs the rule set for intentType against data, returning the
// phased decision every handler branches on next.
func (b Base) evaluate(intentType string, data map[string]any, effectiveDate string) ruledom.Result {
	return b.Rules.Evaluate(ruledom.Context{IntentType: intentType, Data: data, EffectiveDate: effectiveDate})
}

func traces(rs []ruledom.Trace) []ruledom.Trace {
	cp := make([]ruledom.Trace, len(rs))
	copy(cp, rs)

	return cp
}

// rejectResult builds the failure Result for a rule-set rejection,
// rolling back tx — callers return immediately after calling this.
func (b Base) rejectResult(tx *sql.Tx, decision ruledom.Result) (*intentdom.Result, error) {
	_ = tx.Rollback()

	return &intentdom.Result{
		Success: false,
		Error:   decision.RejectionMessage,
		Traces:  traces(decision.Traces),
		Status:  "", // rejection has no stored-intent status of its own
	}, nil
}

// routeForApproval persists a pending-approval intent and commits tx —
// the intent row is the only write this path makes; no entity mutation
// or event append happens until an approver later re-submits it for
// execution (see intentstore.ToIntent).
func (b Base) routeForApproval(ctx context.Context, tx *sql.Tx, intent intentdom.Intent, intentID string, decision ruledom.Result) (*intentdom.Result, error) {
	stored, err := b.Intents.Create(ctx, tx, intentID, intent, intentdom.StatusPendingApproval, decision.RequiredApproverRole)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, platform.WrapInternal("commit route-for-approval", err)
	}

	return &intentdom.Result{
		Success:              true,
		Traces:               traces(decision.Traces),
		Status:               stored.Status,
		RequiredApproverRole:  stored.RequiredApproverRole,
		IntentID:             stored.ID,
	}, nil
}

// appendAndDispatch appends input inside tx, dispatches the resulting
// event to the projection engine in the same transaction, and commits —
// the final three steps of §4.10's discipline, shared by every
// approve/continue branch regardless of which entity the handler mutates.
func (b Base) appendAndDispatch(ctx context.Context, tx *sql.Tx, input eventdom.AppendInput, decision ruledom.Result) (*intentdom.Result, error) {
	event, err := b.Events.Append(ctx, tx, input)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := b.Projections.ProcessEvent(ctx, tx, *event); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, platform.WrapInternal("commit intent execution", err)
	}

	return &intentdom.Result{
		Success: true,
		EventID: event.ID,
		Event:   event,
		Traces:  traces(decision.Traces),
		Status:  intentdom.StatusExecuted,
	}, nil
}

// appendOneInTx appends a single input inside tx and dispatches it to the
// projection engine, without committing — used by lifecycles (invoice
// submit's auto-matching) that need the first event's assigned id before
// building a causally-linked follow-on event in the same transaction.
func (b Base) appendOneInTx(ctx context.Context, tx *sql.Tx, input eventdom.AppendInput) (*eventdom.Event, error) {
	event, err := b.Events.Append(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := b.Projections.ProcessEvent(ctx, tx, *event); err != nil {
		return nil, err
	}

	return event, nil
}

// mergeMaps shallow-merges extra into base (extra wins), used to build a
// rule-evaluation context from the intent payload plus handler-computed
// flags (existing vendor attributes, PO variance, aging, and the like).
func mergeMaps(base eventdom.Payload, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))

	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		out[k] = v
	}

	return out
}

// toEventTraces converts the rules engine's trace type to the event
// envelope's trace type, embedded on every appended event per §4.10 step 7.
func toEventTraces(rs []ruledom.Trace) []eventdom.RuleTrace {
	out := make([]eventdom.RuleTrace, 0, len(rs))

	for _, t := range rs {
		out = append(out, eventdom.RuleTrace{
			RuleID:       t.RuleID,
			RuleName:     t.RuleName,
			Phase:        t.Phase,
			Result:       string(t.Result),
			ActionsTaken: t.ActionsTaken,
			Reason:       t.Reason,
			DurationUS:   t.DurationUS,
		})
	}

	return out
}

// newAppendInput assembles the envelope fields common to every event this
// package appends, leaving Type/Data/Entities/ExpectedEntityVersion/
// CausedBy to the caller.
func (b Base) newAppendInput(intent intentdom.Intent, intentID, eventType string, schemaVersion int, data eventdom.Payload, entities []eventdom.EntityRef, decision ruledom.Result, expectedVersion *int64, causedBy *string) eventdom.AppendInput {
	return eventdom.AppendInput{
		Type:                  eventType,
		SchemaVersion:         schemaVersion,
		OccurredAt:            intent.OccurredAt,
		EffectiveDate:         intent.EffectiveDate,
		Scope:                 eventdom.Scope{Tenant: intent.LegalEntity, LegalEntity: intent.LegalEntity},
		Actor:                 intent.Actor,
		CorrelationID:         intent.CorrelationID,
		CausedBy:              causedBy,
		IntentID:              &intentID,
		Data:                  data,
		Entities:              entities,
		RulesEvaluated:        toEventTraces(decision.Traces),
		IdempotencyKey:        intent.IdempotencyKey,
		ExpectedEntityVersion: expectedVersion,
	}
}

func effectiveDateOf(intent intentdom.Intent) string {
	if intent.EffectiveDate != nil {
		return *intent.EffectiveDate
	}

	return ""
}

// Package eventdom holds the immutable event types the rest of the engine
// treats as the single source of truth.
package eventdom

import (
	"encoding/json"
	"time"
)

// ActorType enumerates who or what caused an event.
type ActorType string

const (
	ActorHuman    ActorType = "human"
	ActorAgent    ActorType = "agent"
	ActorSystem   ActorType = "system"
	ActorExternal ActorType = "external"
	ActorImport   ActorType = "import"
)

// Actor identifies the originator of an intent or event.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id"`
	Name string    `json:"name"`
}

// Scope is the tenant/legal-entity partition key pair every event and
// entity is filed under.
type Scope struct {
	Tenant      string `json:"tenant"`
	LegalEntity string `json:"legal_entity"`
}

// Source records where an event originated.
type Source struct {
	System    string `json:"system,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// EntityRole enumerates the part an entity reference plays on an event.
type EntityRole string

const (
	RoleSubject EntityRole = "subject"
	RoleRelated EntityRole = "related"
)

// EntityRef links an event to one of the entities it concerns. Exactly one
// ref with RoleSubject is the canonical target for OCC.
type EntityRef struct {
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Role       EntityRole `json:"role"`
}

// RuleTrace mirrors the rules engine's per-rule evaluation trace, embedded
// on the event that resulted from it.
type RuleTrace struct {
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	Phase        string   `json:"phase,omitempty"`
	Result       string   `json:"result"`
	ActionsTaken []string `json:"actions_taken,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	DurationUS   int64    `json:"duration_us"`
}

// Payload is an opaque JSON document with typed-accessor helpers, modeling
// the source's schemaless event data as a forward-compatible map rather
// than a closed struct per event type.
type Payload map[string]any

// String returns the string value at key, or "" if absent or not a string.
func (p Payload) String(key string) string {
	v, ok := p[key].(string)
	if !ok {
		return ""
	}

	return v
}

// Float64 returns the numeric value at key, or 0 if absent or not numeric.
// JSON-decoded numbers arrive as float64; this also accepts json.Number.
func (p Payload) Float64(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Bool returns the boolean value at key, or false if absent or not a bool.
func (p Payload) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// Has reports whether key is present in the payload.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Clone returns a shallow copy, used when enriching context data without
// mutating the caller's payload.
func (p Payload) Clone() Payload {
	cp := make(Payload, len(p))
	for k, v := range p {
		cp[k] = v
	}

	return cp
}

// Event is the immutable record of a business fact.
type Event struct {
	ID             string          `json:"id"`
	Sequence       int64           `json:"sequence,string"`
	Type           string          `json:"type"`
	SchemaVersion  int             `json:"schema_version"`
	OccurredAt     time.Time       `json:"occurred_at"`
	RecordedAt     time.Time       `json:"recorded_at"`
	EffectiveDate  string          `json:"effective_date"`
	Scope          Scope           `json:"scope"`
	Actor          Actor           `json:"actor"`
	CorrelationID  string          `json:"correlation_id"`
	CausedBy       *string         `json:"caused_by,omitempty"`
	IntentID       *string         `json:"intent_id,omitempty"`
	Data           Payload         `json:"data"`
	Dimensions     map[string]string `json:"dimensions,omitempty"`
	Entities       []EntityRef     `json:"entities"`
	RulesEvaluated []RuleTrace     `json:"rules_evaluated,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Source         Source          `json:"source,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
}

// Subject returns the entity reference with RoleSubject, if any.
func (e *Event) Subject() (EntityRef, bool) {
	for _, ref := range e.Entities {
		if ref.Role == RoleSubject {
			return ref, true
		}
	}

	return EntityRef{}, false
}

// AppendInput carries everything the caller supplies to append an event;
// store-assigned fields (ID, Sequence, RecordedAt) are filled in by C1.
type AppendInput struct {
	Type                   string
	SchemaVersion          int
	OccurredAt             *time.Time
	EffectiveDate          *string
	Scope                  Scope
	Actor                  Actor
	CorrelationID          string
	CausedBy               *string
	IntentID               *string
	Data                   Payload
	Dimensions             map[string]string
	Entities               []EntityRef
	RulesEvaluated         []RuleTrace
	Tags                   []string
	Source                 Source
	IdempotencyKey         *string
	ExpectedEntityVersion  *int64
}

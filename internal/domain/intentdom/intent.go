// Package intentdom holds the intent and deferred-approval types shared by
// the intent pipeline (C9), intent handlers (C10), and the intent store
// (C8).
package intentdom

import (
	"time"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

// Status is a pending intent's lifecycle state.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusExecuted        Status = "executed"
	StatusFailed          Status = "failed"
)

// Intent is a request to mutate state, authored by a human, system, or
// agent, and routed through the pipeline to a registered handler.
type Intent struct {
	ID                    string
	Type                  string
	Actor                 eventdom.Actor
	LegalEntity           string
	Data                  eventdom.Payload
	IdempotencyKey        *string
	CorrelationID         string
	OccurredAt            *time.Time
	EffectiveDate         *string
	ExpectedEntityVersion *int64
}

// StoredIntent is the persisted row for a pending-approval intent.
type StoredIntent struct {
	ID                   string
	Type                 string
	Status               Status
	Actor                eventdom.Actor
	LegalEntity          string
	Data                 eventdom.Payload
	RequiredApproverRole string
	ApprovedByID         *string
	ApprovedByName       *string
	ApprovalReason       *string
	RejectedByID         *string
	RejectedByName       *string
	RejectionReason      *string
	ResultEventID        *string
	ExecutionError       *string
	CorrelationID        string
	IdempotencyKey       *string
	EffectiveDate        *string
	OccurredAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Result is what an intent handler, and in turn the pipeline, returns.
type Result struct {
	Success              bool
	EventID              string
	Event                *eventdom.Event
	Error                string
	Traces               []ruledom.Trace
	Status               Status
	RequiredApproverRole string
	IntentID             string
}

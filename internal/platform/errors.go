// Package platform holds the ambient stack shared by every component of the
// engine: logging, tracing, configuration, connection hubs and the typed
// error hierarchy the HTTP layer maps to status codes.
package platform

import (
	"fmt"
	"strings"
)

// EntityNotFoundError records that a referenced entity does not exist —
// maps to HTTP 404.
type EntityNotFoundError struct {
	EntityType string
	EntityID   string
	Message    string
	Err        error
}

func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}

	if strings.TrimSpace(e.EntityType) != "" {
		return fmt.Sprintf("%s %s not found", e.EntityType, e.EntityID)
	}

	return "entity not found"
}

func (e EntityNotFoundError) Unwrap() error { return e.Err }

// ValidationError records malformed or missing intent input — maps to 400.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	return e.Message
}

func (e ValidationError) Unwrap() error { return e.Err }

// EntityConflictError records a duplicate-name/unique-key style conflict —
// maps to 409.
type EntityConflictError struct {
	EntityType string
	Message    string
	Err        error
}

func (e EntityConflictError) Error() string { return e.Message }
func (e EntityConflictError) Unwrap() error { return e.Err }

// ConcurrencyConflictError is raised when an entity's version at append
// time does not match the caller's expected_entity_version (OCC). It
// carries the version context spec.md §4.1 and §6 require on the 409
// response body.
type ConcurrencyConflictError struct {
	EntityType string
	EntityID   string
	Expected   int64
	Actual     int64
}

func (e ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on %s %s: expected version %d, actual %d",
		e.EntityType, e.EntityID, e.Expected, e.Actual)
}

// RuleRejectedError carries the rejection message and full rule trace for a
// business-rule rejection — maps to 400 with traces[] in the body.
type RuleRejectedError struct {
	Message string
	Traces  []RuleTrace
}

func (e RuleRejectedError) Error() string { return e.Message }

// RuleTrace mirrors the shape described in spec.md §4.4's output.
type RuleTrace struct {
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	Phase        string   `json:"phase,omitempty"`
	Result       string   `json:"result"`
	ActionsTaken []string `json:"actions_taken,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	DurationUS   int64    `json:"duration_us"`
}

// ApprovalRoutedError is not a failure: it signals the intent was routed
// for deferred approval. The HTTP layer maps it to 202, never to an error
// status.
type ApprovalRoutedError struct {
	RequiredApproverRole string
	Traces                []RuleTrace
}

func (e ApprovalRoutedError) Error() string {
	return fmt.Sprintf("routed for approval: requires role %s", e.RequiredApproverRole)
}

// UnauthorizedError indicates the request carries no valid actor identity —
// maps to 401.
type UnauthorizedError struct {
	Message string
}

func (e UnauthorizedError) Error() string { return e.Message }

// ForbiddenError indicates the actor lacks the capability or segregation of
// duties required for the operation — maps to 403.
type ForbiddenError struct {
	Message string
}

func (e ForbiddenError) Error() string { return e.Message }

// InternalError wraps unexpected storage/engine failures — maps to 500 and
// is logged with the request's correlation id by the caller.
type InternalError struct {
	Message string
	Err     error
}

func (e InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e InternalError) Unwrap() error { return e.Err }

// WrapInternal wraps err as an InternalError unless it is already one of
// the engine's typed errors, mirroring common.ValidateInternalError.
func WrapInternal(message string, err error) error {
	if err == nil {
		return nil
	}

	switch err.(type) {
	case EntityNotFoundError, ValidationError, EntityConflictError,
		ConcurrencyConflictError, RuleRejectedError, ApprovalRoutedError,
		UnauthorizedError, ForbiddenError, InternalError:
		return err
	default:
		return InternalError{Message: message, Err: err}
	}
}

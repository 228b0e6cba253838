// Package eventstore implements C1: the monotonically-ordered,
// append-only, partitioned event log with idempotency, schema validation
// on append, optimistic concurrency control against the entity graph, and
// a post-commit notification channel.
package eventstore

import (
	"context"
	"database/sql"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// Querier is satisfied by *sql.DB, *sql.Tx, and dbresolver.DB, letting
// every repository method accept either a pool or a caller-supplied
// transaction — the in-transaction dispatch discipline SPEC_FULL.md's
// intent handlers require (§4.10, §9 "in-transaction dispatch vs async
// workers").
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SchemaValidator is the narrow view of the Event Type Registry (C2) the
// store depends on. Registration is optional: a nil validator makes
// append() permissive, per §4.2.
type SchemaValidator interface {
	Validate(ctx context.Context, eventType string, schemaVersion int, data map[string]any) (bool, error)
}

// EntityVersionReader is the narrow view of the Entity Graph (C3) the
// store depends on to enforce OCC against the subject entity, without an
// import cycle back to internal/entitygraph.
type EntityVersionReader interface {
	GetEntityVersion(ctx context.Context, q Querier, entityType, entityID, legalEntity string) (version int64, found bool, err error)
}

// ReadStreamParams selects a page of the event log.
type ReadStreamParams struct {
	AfterSequence int64
	Limit         int
	EventTypes    []string
}

// StreamPage is the page shape §4.1 requires: has_more computed by
// over-fetching by one.
type StreamPage struct {
	Events       []eventdom.Event
	HasMore      bool
	NextSequence *int64
}

const defaultPageSize = 100

// Package projectionengine implements C5: the handler registry,
// in-transaction synchronous dispatch, the out-of-band polling worker,
// rebuild/replay, and dead-letter capture.
package projectionengine

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
)

// Querier is the shared-transaction seam threaded through every handler
// call so synchronous dispatch runs inside the caller's transaction.
type Querier = eventstore.Querier

// Handler is a registered projection handler: it declares the event types
// it cares about and mutates its own projection table in response.
type Handler interface {
	ProjectionType() string
	EventTypes() []string
	Handle(ctx context.Context, q Querier, event eventdom.Event) error
}

// Resettable is implemented by handlers whose projection table can be
// truncated and rebuilt from scratch.
type Resettable interface {
	Reset(ctx context.Context, q Querier) error
}

// Registry maps event types to the handlers that process them, fanned out
// in registration order per §4.5.
type Registry struct {
	byEventType map[string][]Handler
	byProjType  map[string][]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byEventType: make(map[string][]Handler),
		byProjType:  make(map[string][]Handler),
	}
}

// Register adds handler under each of its declared event types.
func (r *Registry) Register(handler Handler) {
	r.byProjType[handler.ProjectionType()] = append(r.byProjType[handler.ProjectionType()], handler)

	for _, t := range handler.EventTypes() {
		r.byEventType[t] = append(r.byEventType[t], handler)
	}
}

// HandlersFor returns the handlers registered for an event type, in
// registration order.
func (r *Registry) HandlersFor(eventType string) []Handler {
	return r.byEventType[eventType]
}

// HandlersForProjection returns every handler registered under a
// projection type, used by rebuild and reset.
func (r *Registry) HandlersForProjection(projectionType string) []Handler {
	return r.byProjType[projectionType]
}

// EventTypesForProjection returns the union of event types a projection's
// handlers declare, used to filter the replay stream during rebuild.
func (r *Registry) EventTypesForProjection(projectionType string) []string {
	seen := make(map[string]struct{})

	var types []string

	for _, h := range r.byProjType[projectionType] {
		for _, t := range h.EventTypes() {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				types = append(types, t)
			}
		}
	}

	return types
}

// ProjectionTypes returns every distinct registered projection type.
func (r *Registry) ProjectionTypes() []string {
	types := make([]string, 0, len(r.byProjType))
	for t := range r.byProjType {
		types = append(types, t)
	}

	return types
}

package projectionengine

import (
	"context"
	"fmt"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// SubscriptionService is the narrow view of C6 the engine needs to
// resolve and advance cursors.
type SubscriptionService interface {
	ListByProjectionType(ctx context.Context, q Querier, projectionType string) ([]*projectiondom.Subscription, error)
	ListActive(ctx context.Context, q Querier) ([]*projectiondom.Subscription, error)
	UpdateCursor(ctx context.Context, q Querier, id, lastProcessedID string, lastProcessedSequence int64) error
	BeginReset(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error)
	EndReset(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error)
}

// Engine is the Postgres-backed projection engine tying together the
// handler registry, subscription cursors, and dead-letter capture.
type Engine struct {
	registry *Registry
	subs     SubscriptionService
	deadLtr  *DeadLetterRepository
	logger   platform.Logger
}

// NewEngine builds an Engine.
func NewEngine(registry *Registry, subs SubscriptionService, deadLtr *DeadLetterRepository, logger platform.Logger) *Engine {
	if logger == nil {
		logger = &platform.NoneLogger{}
	}

	return &Engine{registry: registry, subs: subs, deadLtr: deadLtr, logger: logger}
}

// ProcessEvent fans an appended event out to every handler registered for
// its type, in registration order, inside the caller's transaction. A
// handler failure is dead-lettered but never aborts the caller's
// transaction or blocks sibling handlers. After dispatch, every
// subscription for a matching projection type has its cursor advanced to
// this event — the synchronous in-transaction path §4.5 describes.
func (e *Engine) ProcessEvent(ctx context.Context, q Querier, event eventdom.Event) error {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "projectionengine.process_event")
	defer span.End()

	handlers := e.registry.HandlersFor(event.Type)

	touched := make(map[string]struct{}, len(handlers))

	for _, h := range handlers {
		if err := e.invoke(ctx, q, h, event); err != nil {
			if dlErr := e.deadLtr.Record(ctx, q, event.ID, event.Sequence, h.ProjectionType(), err.Error(), ""); dlErr != nil {
				e.logger.Errorf("failed to record dead letter for event %s projection %s: %v", event.ID, h.ProjectionType(), dlErr)
			}

			continue
		}

		touched[h.ProjectionType()] = struct{}{}
	}

	for projType := range touched {
		subs, err := e.subs.ListByProjectionType(ctx, q, projType)
		if err != nil {
			platform.HandleSpanError(&span, "failed to list subscriptions for cursor advance", err)
			return platform.WrapInternal("list subscriptions for cursor advance", err)
		}

		for _, sub := range subs {
			if err := e.subs.UpdateCursor(ctx, q, sub.ID, event.ID, event.Sequence); err != nil {
				platform.HandleSpanError(&span, "failed to advance subscription cursor", err)
				return err
			}
		}
	}

	return nil
}

func (e *Engine) invoke(ctx context.Context, q Querier, h Handler, event eventdom.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h.Handle(ctx, q, event)
}

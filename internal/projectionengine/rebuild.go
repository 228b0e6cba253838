package projectionengine

import (
	"context"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// EventReader is the narrow view of C1 the engine needs to replay the
// stream during rebuild and to poll for newly appended events.
type EventReader interface {
	ReadStream(ctx context.Context, q eventstore.Querier, params eventstore.ReadStreamParams) (*eventstore.StreamPage, error)
}

// Rebuilder wires an Engine to the event store and connection pool for
// the out-of-band replay pipeline. Kept separate from Engine so the
// synchronous dispatch path never needs an EventReader or pool handle.
type Rebuilder struct {
	engine *Engine
	events EventReader
	db     *platform.PostgresConnection
}

// NewRebuilder builds a Rebuilder.
func NewRebuilder(engine *Engine, events EventReader, db *platform.PostgresConnection) *Rebuilder {
	return &Rebuilder{engine: engine, events: events, db: db}
}

// Rebuild replays every event of a projection's declared event types
// through its handlers from a zero cursor, per §4.5's four-step routine:
// reset subscription + handler state, replay in batches with a
// per-event transaction, dead-letter failures while still advancing
// (rebuild trades strict ordering guarantees for forward progress), then
// reactivate the subscription.
func (r *Rebuilder) Rebuild(ctx context.Context, projectionType string, subscriptionID string, batchSize int) (*projectiondom.RebuildResult, error) {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "projectionengine.rebuild")
	defer span.End()

	if batchSize <= 0 {
		batchSize = 100
	}

	db, err := r.db.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	if _, err := r.engine.subs.BeginReset(ctx, db, subscriptionID); err != nil {
		platform.HandleSpanError(&span, "failed to begin subscription reset", err)
		return nil, err
	}

	handlers := r.engine.registry.HandlersForProjection(projectionType)

	resetTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, platform.WrapInternal("begin reset transaction", err)
	}

	for _, h := range handlers {
		if resettable, ok := h.(Resettable); ok {
			if err := resettable.Reset(ctx, resetTx); err != nil {
				_ = resetTx.Rollback()
				return nil, platform.WrapInternal("reset projection before rebuild", err)
			}
		}
	}

	if err := resetTx.Commit(); err != nil {
		return nil, platform.WrapInternal("commit reset transaction", err)
	}

	eventTypes := r.engine.registry.EventTypesForProjection(projectionType)

	result := &projectiondom.RebuildResult{ProjectionType: projectionType}

	var afterSequence int64

	for {
		page, err := r.events.ReadStream(ctx, db, eventstore.ReadStreamParams{
			AfterSequence: afterSequence,
			Limit:         batchSize,
			EventTypes:    eventTypes,
		})
		if err != nil {
			platform.HandleSpanError(&span, "failed to read event stream during rebuild", err)
			return nil, err
		}

		for _, event := range page.Events {
			dead, err := r.replayOne(ctx, db, handlers, event, subscriptionID)
			if err != nil {
				platform.HandleSpanError(&span, "failed to replay event during rebuild", err)
				return nil, err
			}

			result.EventsProcessed++
			if dead {
				result.DeadLettered++
			}

			afterSequence = event.Sequence
		}

		if !page.HasMore {
			break
		}
	}

	if _, err := r.engine.subs.EndReset(ctx, db, subscriptionID); err != nil {
		platform.HandleSpanError(&span, "failed to end subscription reset", err)
		return nil, err
	}

	return result, nil
}

func (r *Rebuilder) replayOne(ctx context.Context, db dbresolver.DB, handlers []Handler, event eventdom.Event, subscriptionID string) (deadLettered bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, platform.WrapInternal("begin replay transaction", err)
	}

	anyFailed := false

	for _, h := range handlers {
		if !eventTypeMatches(h, event.Type) {
			continue
		}

		if handleErr := r.engine.invoke(ctx, tx, h, event); handleErr != nil {
			anyFailed = true

			if dlErr := r.engine.deadLtr.Record(ctx, tx, event.ID, event.Sequence, h.ProjectionType(), handleErr.Error(), ""); dlErr != nil {
				_ = tx.Rollback()
				return false, platform.WrapInternal("record dead letter during rebuild", dlErr)
			}
		}
	}

	if err := r.engine.subs.UpdateCursor(ctx, tx, subscriptionID, event.ID, event.Sequence); err != nil {
		_ = tx.Rollback()
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, platform.WrapInternal("commit replay transaction", err)
	}

	return anyFailed, nil
}

func eventTypeMatches(h Handler, eventType string) bool {
	for _, t := range h.EventTypes() {
		if t == eventType {
			return true
		}
	}

	return false
}

package projectionengine

import (
	"context"
	"time"

	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 5
)

// Listener is the narrow view of C1's notification channel the poller
// wakes on, in addition to its own ticker.
type Listener interface {
	SetupNotificationListener(ctx context.Context, queueName string, callback func(eventstore.AppendNotification)) (*eventstore.ListenerHandle, error)
}

// Poller is the single background task that processes events not yet
// consumed by each active subscription — after failures, after rebuilds,
// or simply between notification wakeups.
type Poller struct {
	engine       *Engine
	events       EventReader
	listener     Listener
	db           *platform.PostgresConnection
	logger       platform.Logger
	pollInterval time.Duration
	maxAttempts  int

	attempts map[string]int
}

// NewPoller builds a Poller. A zero pollInterval defaults to 500ms; a
// zero maxAttempts defaults to 5, per the resolved poison-event Open
// Question.
func NewPoller(engine *Engine, events EventReader, listener Listener, db *platform.PostgresConnection, logger platform.Logger, pollInterval time.Duration, maxAttempts int) *Poller {
	if logger == nil {
		logger = &platform.NoneLogger{}
	}

	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Poller{
		engine: engine, events: events, listener: listener, db: db, logger: logger,
		pollInterval: pollInterval, maxAttempts: maxAttempts, attempts: make(map[string]int),
	}
}

// Run blocks until ctx is cancelled, waking on both the notification
// channel and a polling interval fallback, per §4.5.
func (p *Poller) Run(ctx context.Context) error {
	wake := make(chan struct{}, 1)

	var handle *eventstore.ListenerHandle

	if p.listener != nil {
		h, err := p.listener.SetupNotificationListener(ctx, "projections.poller", func(eventstore.AppendNotification) {
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		if err != nil {
			p.logger.Warnf("failed to set up notification listener, falling back to polling only: %v", err)
		} else {
			handle = h
		}
	}

	if handle != nil {
		defer handle.Release()
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-wake:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce processes one batch per active subscription; errors are
// logged, never propagated, so one misbehaving subscription doesn't stop
// the others from making progress.
func (p *Poller) pollOnce(ctx context.Context) {
	db, err := p.db.GetDB(ctx)
	if err != nil {
		p.logger.Errorf("poller failed to get database connection: %v", err)
		return
	}

	subs, err := p.engine.subs.ListActive(ctx, db)
	if err != nil {
		p.logger.Errorf("poller failed to list active subscriptions: %v", err)
		return
	}

	for _, sub := range subs {
		limit := sub.BatchSize
		if limit <= 0 {
			limit = 100
		}

		page, err := p.events.ReadStream(ctx, db, eventstore.ReadStreamParams{
			AfterSequence: sub.LastProcessedSequence,
			Limit:         limit,
			EventTypes:    sub.EventTypes,
		})
		if err != nil {
			p.logger.Errorf("poller failed to read stream for subscription %s: %v", sub.ID, err)
			continue
		}

		for _, event := range page.Events {
			handlers := p.engine.registry.HandlersForProjection(sub.ProjectionType)

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				p.logger.Errorf("poller failed to begin transaction for subscription %s: %v", sub.ID, err)
				break
			}

			failed := false

			for _, h := range handlers {
				if !eventTypeMatches(h, event.Type) {
					continue
				}

				if handleErr := p.engine.invoke(ctx, tx, h, event); handleErr != nil {
					failed = true
					p.logger.Warnf("handler %s failed for event %s: %v", h.ProjectionType(), event.ID, handleErr)

					break
				}
			}

			attemptKey := sub.ID + ":" + event.ID

			if failed {
				_ = tx.Rollback()

				p.attempts[attemptKey]++

				if p.attempts[attemptKey] < p.maxAttempts {
					// Rollback and do not advance the cursor; the event is
					// retried on the next poll per §4.5/§7.
					break
				}

				// Max retries exceeded: force-advance past the poison
				// event so the subscription doesn't stall forever (the
				// resolved poison-event Open Question).
				forceTx, err := db.BeginTx(ctx, nil)
				if err != nil {
					p.logger.Errorf("poller failed to begin force-advance transaction: %v", err)
					break
				}

				if dlErr := p.engine.deadLtr.Record(ctx, forceTx, event.ID, event.Sequence, sub.ProjectionType,
					"max retries exceeded, cursor force-advanced", ""); dlErr != nil {
					_ = forceTx.Rollback()
					p.logger.Errorf("poller failed to record force-advance dead letter: %v", dlErr)

					break
				}

				if err := p.engine.subs.UpdateCursor(ctx, forceTx, sub.ID, event.ID, event.Sequence); err != nil {
					_ = forceTx.Rollback()
					p.logger.Errorf("poller failed to force-advance cursor: %v", err)

					break
				}

				if err := forceTx.Commit(); err != nil {
					p.logger.Errorf("poller failed to commit force-advance: %v", err)
					break
				}

				delete(p.attempts, attemptKey)

				continue
			}

			if err := p.engine.subs.UpdateCursor(ctx, tx, sub.ID, event.ID, event.Sequence); err != nil {
				_ = tx.Rollback()
				p.logger.Errorf("poller failed to advance cursor for subscription %s: %v", sub.ID, err)

				break
			}

			if err := tx.Commit(); err != nil {
				p.logger.Errorf("poller failed to commit for subscription %s: %v", sub.ID, err)
				break
			}

			delete(p.attempts, attemptKey)
		}
	}
}

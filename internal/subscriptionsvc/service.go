// Package subscriptionsvc implements C6: CRUD and lifecycle state
// transitions on projection subscription rows (cursors). Cursor advances
// during dispatch belong to the projection engine (C5); this service owns
// only the status state machine and administrative CRUD.
package subscriptionsvc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Querier is the shared-transaction seam every repository in the engine
// uses, aliased to C1's so consumers (C5, C7) can declare their own
// narrow views of this service without a type mismatch on the parameter.
type Querier = eventstore.Querier

// Service is the Postgres-backed subscription service.
type Service struct {
	db *platform.PostgresConnection
}

// New builds a Service.
func New(db *platform.PostgresConnection) *Service {
	return &Service{db: db}
}

func (s *Service) conn(ctx context.Context, q Querier) (Querier, error) {
	if q != nil {
		return q, nil
	}

	return s.db.GetDB(ctx)
}

// Create registers a new subscription in the active state, per the
// [missing] --create()--> active transition.
func (s *Service) Create(ctx context.Context, q Querier, sub projectiondom.Subscription) (*projectiondom.Subscription, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	if sub.BatchSize == 0 {
		sub.BatchSize = 100
	}

	sub.Status = projectiondom.StatusActive

	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	const query = `
		INSERT INTO event_subscriptions (id, projection_type, subscriber_type, subscriber_id, event_types,
			last_processed_sequence, status, batch_size, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7,$8,$8)`

	if _, err := q.ExecContext(ctx, query, sub.ID, sub.ProjectionType, sub.SubscriberType, sub.SubscriberID,
		stringArray(sub.EventTypes), sub.Status, sub.BatchSize, now); err != nil {
		return nil, platform.WrapInternal("create subscription", err)
	}

	return &sub, nil
}

// GetByID returns a subscription by id.
func (s *Service) GetByID(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	row := q.QueryRowContext(ctx, subscriptionColumns+` FROM event_subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, platform.EntityNotFoundError{EntityType: "subscription", EntityID: id}
	}

	if err != nil {
		return nil, platform.WrapInternal("get subscription", err)
	}

	return sub, nil
}

// ListByProjectionType returns every subscription registered for a
// projection type.
func (s *Service) ListByProjectionType(ctx context.Context, q Querier, projectionType string) ([]*projectiondom.Subscription, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	rows, err := q.QueryContext(ctx, subscriptionColumns+` FROM event_subscriptions WHERE projection_type = $1`, projectionType)
	if err != nil {
		return nil, platform.WrapInternal("list subscriptions", err)
	}
	defer rows.Close()

	var subs []*projectiondom.Subscription

	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, platform.WrapInternal("scan subscription row", err)
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// ListActive returns every subscription currently in the active state,
// the set the polling worker iterates each tick.
func (s *Service) ListActive(ctx context.Context, q Querier) ([]*projectiondom.Subscription, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	rows, err := q.QueryContext(ctx, subscriptionColumns+` FROM event_subscriptions WHERE status = $1`, projectiondom.StatusActive)
	if err != nil {
		return nil, platform.WrapInternal("list active subscriptions", err)
	}
	defer rows.Close()

	var subs []*projectiondom.Subscription

	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, platform.WrapInternal("scan subscription row", err)
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// Pause transitions active -> paused; a no-op attempt returns nil, nil.
func (s *Service) Pause(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	return s.transition(ctx, q, id, projectiondom.StatusActive, projectiondom.StatusPaused)
}

// Resume transitions paused -> active; a no-op attempt returns nil, nil.
func (s *Service) Resume(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	return s.transition(ctx, q, id, projectiondom.StatusPaused, projectiondom.StatusActive)
}

// BeginReset transitions active|paused -> resetting and zeroes the
// cursor, the first step of C5's rebuild routine.
func (s *Service) BeginReset(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	const query = `
		UPDATE event_subscriptions SET status = $1, last_processed_sequence = 0, last_processed_id = NULL, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)`

	now := time.Now().UTC()

	result, err := q.ExecContext(ctx, query, projectiondom.StatusResetting, now, id,
		projectiondom.StatusActive, projectiondom.StatusPaused)
	if err != nil {
		return nil, platform.WrapInternal("begin subscription reset", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, nil
	}

	return s.GetByID(ctx, q, id)
}

// EndReset transitions resetting -> active, the last step of rebuild.
func (s *Service) EndReset(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	return s.transition(ctx, q, id, projectiondom.StatusResetting, projectiondom.StatusActive)
}

func (s *Service) transition(ctx context.Context, q Querier, id string, from, to projectiondom.SubscriptionStatus) (*projectiondom.Subscription, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	const query = `UPDATE event_subscriptions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	now := time.Now().UTC()

	result, err := q.ExecContext(ctx, query, to, now, id, from)
	if err != nil {
		return nil, platform.WrapInternal("transition subscription status", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, nil
	}

	return s.GetByID(ctx, q, id)
}

// UpdateCursor atomically advances a subscription's cursor, called by the
// projection engine inside the append transaction or a per-event poll
// transaction — never by request handlers.
func (s *Service) UpdateCursor(ctx context.Context, q Querier, id, lastProcessedID string, lastProcessedSequence int64) error {
	q, err := s.conn(ctx, q)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	const query = `
		UPDATE event_subscriptions SET last_processed_id = $1, last_processed_sequence = $2, updated_at = $3
		WHERE id = $4`

	_, err = q.ExecContext(ctx, query, lastProcessedID, lastProcessedSequence, time.Now().UTC(), id)
	if err != nil {
		return platform.WrapInternal("update subscription cursor", err)
	}

	return nil
}

func stringArray(values []string) []byte {
	if len(values) == 0 {
		return nil
	}

	b, _ := json.Marshal(values)

	return b
}

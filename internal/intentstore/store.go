// Package intentstore implements C8: the pending-approval intent
// lifecycle — create, approve (with Segregation of Duties enforcement),
// reject, mark executed/failed, and reconstitution for deferred execution.
package intentstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Querier is the shared-transaction seam, aliased to C1's.
type Querier = eventstore.Querier

// Store is the Postgres-backed intent store.
type Store struct {
	db *platform.PostgresConnection
}

// New builds a Store.
func New(db *platform.PostgresConnection) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context, q Querier) (Querier, error) {
	if q != nil {
		return q, nil
	}

	return s.db.GetDB(ctx)
}

// Create persists a new pending intent, capturing the originating actor
// and data for later SoD comparison and deferred execution.
func (s *Store) Create(ctx context.Context, q Querier, id string, intent intentdom.Intent, status intentdom.Status, requiredApproverRole string) (*intentdom.StoredIntent, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()

	stored := &intentdom.StoredIntent{
		ID:                   id,
		Type:                 intent.Type,
		Status:               status,
		Actor:                intent.Actor,
		LegalEntity:          intent.LegalEntity,
		Data:                 intent.Data,
		RequiredApproverRole: requiredApproverRole,
		CorrelationID:        intent.CorrelationID,
		IdempotencyKey:       intent.IdempotencyKey,
		EffectiveDate:        intent.EffectiveDate,
		OccurredAt:           intent.OccurredAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := insertIntent(ctx, q, stored); err != nil {
		return nil, platform.WrapInternal("create intent", err)
	}

	return stored, nil
}

// Approve transitions a pending intent to approved. Enforces Segregation
// of Duties: the approver must not be the intent's original actor.
func (s *Store) Approve(ctx context.Context, q Querier, id, approverID, approverName string, reason *string) (*intentdom.StoredIntent, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	stored, err := s.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}

	if stored.Status != intentdom.StatusPendingApproval {
		return nil, platform.ValidationError{Field: "status", Message: "intent is not pending approval"}
	}

	if stored.Actor.ID == approverID {
		return nil, platform.ForbiddenError{Message: "approver must not be the intent's originating actor (segregation of duties)"}
	}

	const query = `
		UPDATE stored_intents SET status = $1, approved_by_id = $2, approved_by_name = $3, approval_reason = $4, updated_at = $5
		WHERE id = $6 AND status = $7`

	now := time.Now().UTC()

	result, err := q.ExecContext(ctx, query, intentdom.StatusApproved, approverID, approverName, reason, now, id, intentdom.StatusPendingApproval)
	if err != nil {
		return nil, platform.WrapInternal("approve intent", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, platform.ValidationError{Field: "status", Message: "intent is not pending approval"}
	}

	return s.GetByID(ctx, q, id)
}

// Reject transitions a pending intent to rejected.
func (s *Store) Reject(ctx context.Context, q Querier, id, rejectorID, rejectorName string, reason *string) (*intentdom.StoredIntent, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	const query = `
		UPDATE stored_intents SET status = $1, rejected_by_id = $2, rejected_by_name = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $6 AND status = $7`

	now := time.Now().UTC()

	result, err := q.ExecContext(ctx, query, intentdom.StatusRejected, rejectorID, rejectorName, reason, now, id, intentdom.StatusPendingApproval)
	if err != nil {
		return nil, platform.WrapInternal("reject intent", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, platform.ValidationError{Field: "status", Message: "intent is not pending approval"}
	}

	return s.GetByID(ctx, q, id)
}

// MarkExecuted records the resulting event id against an approved intent
// once it has been replayed through its handler.
func (s *Store) MarkExecuted(ctx context.Context, q Querier, id, eventID string) error {
	q, err := s.conn(ctx, q)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	const query = `UPDATE stored_intents SET status = $1, result_event_id = $2, updated_at = $3 WHERE id = $4`

	if _, err := q.ExecContext(ctx, query, intentdom.StatusExecuted, eventID, time.Now().UTC(), id); err != nil {
		return platform.WrapInternal("mark intent executed", err)
	}

	return nil
}

// MarkFailed records an execution error against an intent.
func (s *Store) MarkFailed(ctx context.Context, q Querier, id, executionError string) error {
	q, err := s.conn(ctx, q)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	const query = `UPDATE stored_intents SET status = $1, execution_error = $2, updated_at = $3 WHERE id = $4`

	if _, err := q.ExecContext(ctx, query, intentdom.StatusFailed, executionError, time.Now().UTC(), id); err != nil {
		return platform.WrapInternal("mark intent failed", err)
	}

	return nil
}

// GetByID loads a stored intent.
func (s *Store) GetByID(ctx context.Context, q Querier, id string) (*intentdom.StoredIntent, error) {
	q, err := s.conn(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	row := q.QueryRowContext(ctx, storedIntentColumns+` FROM stored_intents WHERE id = $1`, id)

	stored, err := scanStoredIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, platform.EntityNotFoundError{EntityType: "intent", EntityID: id}
	}

	if err != nil {
		return nil, platform.WrapInternal("get intent", err)
	}

	return stored, nil
}

// ToIntent reconstitutes the intent object from a stored row, for
// deferred execution once the intent has been approved.
func ToIntent(stored *intentdom.StoredIntent) intentdom.Intent {
	return intentdom.Intent{
		ID:             stored.ID,
		Type:           stored.Type,
		Actor:          stored.Actor,
		LegalEntity:    stored.LegalEntity,
		Data:           stored.Data,
		IdempotencyKey: stored.IdempotencyKey,
		CorrelationID:  stored.CorrelationID,
		OccurredAt:     stored.OccurredAt,
		EffectiveDate:  stored.EffectiveDate,
	}
}

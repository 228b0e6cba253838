package intentstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
)

const storedIntentColumns = `
	SELECT id, type, status, actor_type, actor_id, actor_name, legal_entity, data,
		required_approver_role, approved_by_id, approved_by_name, approval_reason,
		rejected_by_id, rejected_by_name, rejection_reason, result_event_id, execution_error,
		correlation_id, idempotency_key, effective_date, occurred_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredIntent(row rowScanner) (*intentdom.StoredIntent, error) {
	var (
		s                                                       intentdom.StoredIntent
		dataJSON                                                []byte
		actorType, actorID, actorName                           string
		approvedByID, approvedByName, approvalReason            sql.NullString
		rejectedByID, rejectedByName, rejectionReason            sql.NullString
		resultEventID, executionError, idempotencyKey           sql.NullString
		effectiveDate                                            sql.NullString
		occurredAt                                               sql.NullTime
	)

	if err := row.Scan(&s.ID, &s.Type, &s.Status, &actorType, &actorID, &actorName, &s.LegalEntity, &dataJSON,
		&s.RequiredApproverRole, &approvedByID, &approvedByName, &approvalReason,
		&rejectedByID, &rejectedByName, &rejectionReason, &resultEventID, &executionError,
		&s.CorrelationID, &idempotencyKey, &effectiveDate, &occurredAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}

	s.Actor = eventdom.Actor{Type: eventdom.ActorType(actorType), ID: actorID, Name: actorName}

	if approvedByID.Valid {
		s.ApprovedByID = &approvedByID.String
	}

	if approvedByName.Valid {
		s.ApprovedByName = &approvedByName.String
	}

	if approvalReason.Valid {
		s.ApprovalReason = &approvalReason.String
	}

	if rejectedByID.Valid {
		s.RejectedByID = &rejectedByID.String
	}

	if rejectedByName.Valid {
		s.RejectedByName = &rejectedByName.String
	}

	if rejectionReason.Valid {
		s.RejectionReason = &rejectionReason.String
	}

	if resultEventID.Valid {
		s.ResultEventID = &resultEventID.String
	}

	if executionError.Valid {
		s.ExecutionError = &executionError.String
	}

	if idempotencyKey.Valid {
		s.IdempotencyKey = &idempotencyKey.String
	}

	if effectiveDate.Valid {
		s.EffectiveDate = &effectiveDate.String
	}

	if occurredAt.Valid {
		s.OccurredAt = &occurredAt.Time
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &s.Data); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

func insertIntent(ctx context.Context, q Querier, s *intentdom.StoredIntent) error {
	dataJSON, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO stored_intents (id, type, status, actor_type, actor_id, actor_name, legal_entity, data,
			required_approver_role, correlation_id, idempotency_key, effective_date, occurred_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`

	_, err = q.ExecContext(ctx, query, s.ID, s.Type, s.Status, s.Actor.Type, s.Actor.ID, s.Actor.Name, s.LegalEntity, dataJSON,
		s.RequiredApproverRole, s.CorrelationID, s.IdempotencyKey, s.EffectiveDate, s.OccurredAt, s.CreatedAt)

	return err
}

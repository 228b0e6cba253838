package eventstore

import (
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

const eventColumns = `
	id, sequence, type, schema_version, occurred_at, recorded_at, effective_date,
	tenant_id, legal_entity, actor_type, actor_id, actor_name,
	caused_by, intent_id, correlation_id, data, dimensions, entity_refs,
	rules_evaluated, tags, source_system, source_channel, source_ref,
	idempotency_key`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*eventdom.Event, error) {
	return scanEventRows(row)
}

func scanEventRows(row rowScanner) (*eventdom.Event, error) {
	var (
		e                                          eventdom.Event
		data, dims, entities, traces               []byte
		tags                                       pq.StringArray
		causedBy, intentID, idempotencyKey         sql.NullString
		sourceSystem, sourceChannel, sourceRef      sql.NullString
	)

	err := row.Scan(
		&e.ID, &e.Sequence, &e.Type, &e.SchemaVersion, &e.OccurredAt, &e.RecordedAt, &e.EffectiveDate,
		&e.Scope.Tenant, &e.Scope.LegalEntity, &e.Actor.Type, &e.Actor.ID, &e.Actor.Name,
		&causedBy, &intentID, &e.CorrelationID, &data, &dims, &entities,
		&traces, &tags, &sourceSystem, &sourceChannel, &sourceRef,
		&idempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	if causedBy.Valid {
		e.CausedBy = &causedBy.String
	}

	if intentID.Valid {
		e.IntentID = &intentID.String
	}

	if idempotencyKey.Valid {
		e.IdempotencyKey = &idempotencyKey.String
	}

	e.Source = eventdom.Source{System: sourceSystem.String, Channel: sourceChannel.String, Reference: sourceRef.String}
	e.Tags = []string(tags)

	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, err
		}
	}

	if len(dims) > 0 {
		if err := json.Unmarshal(dims, &e.Dimensions); err != nil {
			return nil, err
		}
	}

	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &e.Entities); err != nil {
			return nil, err
		}
	}

	if len(traces) > 0 {
		if err := json.Unmarshal(traces, &e.RulesEvaluated); err != nil {
			return nil, err
		}
	}

	return &e, nil
}

package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Store is the Postgres-backed event store, grounded on the teacher's
// repository-per-adapter shape
// (components/ledger/internal/adapters/postgres/ledger/ledger.postgresql.go):
// squirrel for dynamic SELECTs, raw parametrized SQL for the hot
// single-row paths, pgconn.PgError mapped to typed business errors, and a
// tracer span per operation.
type Store struct {
	db        *platform.PostgresConnection
	notifier  *platform.RabbitMQConnection
	audit     AuditMirror
	registry  SchemaValidator
	versions  EntityVersionReader
	tableName string
}

// AuditMirror is the narrow view of the Mongo-backed audit archive the
// store writes a best-effort copy of every appended event to; failures to
// mirror never fail the append.
type AuditMirror interface {
	MirrorEvent(ctx context.Context, event eventdom.Event) error
}

// NewStore builds a Store. registry and versions may be nil; audit may be
// nil to disable the Mongo mirror.
func NewStore(db *platform.PostgresConnection, notifier *platform.RabbitMQConnection, audit AuditMirror, registry SchemaValidator, versions EntityVersionReader) *Store {
	return &Store{
		db:        db,
		notifier:  notifier,
		audit:     audit,
		registry:  registry,
		versions:  versions,
		tableName: "events",
	}
}

// Append validates, idempotency-checks, OCC-checks, and inserts a new
// event row, per §4.1's ordered steps. q is the caller's transaction when
// participating in a handler's atomic write+project tuple, or the pool
// for a standalone append.
func (s *Store) Append(ctx context.Context, q Querier, input eventdom.AppendInput) (*eventdom.Event, error) {
	tracer := platform.TracerFromContext(ctx)
	logger := platform.LoggerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "eventstore.append")
	defer span.End()

	if q == nil {
		db, err := s.db.GetDB(ctx)
		if err != nil {
			platform.HandleSpanError(&span, "failed to get database connection", err)
			return nil, platform.WrapInternal("get database connection", err)
		}

		q = db
	}

	if s.registry != nil {
		ok, err := s.registry.Validate(ctx, input.Type, input.SchemaVersion, input.Data)
		if err != nil {
			platform.HandleSpanError(&span, "schema validation errored", err)
			return nil, platform.WrapInternal("validate event schema", err)
		}

		if !ok {
			err := platform.ValidationError{Field: "data", Message: fmt.Sprintf("payload does not conform to schema %s v%d", input.Type, input.SchemaVersion)}
			platform.HandleSpanError(&span, "schema validation failed", err)

			return nil, err
		}
	}

	if input.IdempotencyKey != nil && strings.TrimSpace(*input.IdempotencyKey) != "" {
		existing, err := s.findByIdempotencyKey(ctx, q, input.Type, *input.IdempotencyKey)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			logger.Debugf("idempotent replay for key %s, returning event %s", *input.IdempotencyKey, existing.ID)
			return existing, nil
		}
	}

	if input.ExpectedEntityVersion != nil {
		ref, ok := subjectOf(input.Entities)
		if ok {
			if s.versions != nil {
				actual, found, err := s.versions.GetEntityVersion(ctx, q, ref.EntityType, ref.EntityID, input.Scope.LegalEntity)
				if err != nil {
					platform.HandleSpanError(&span, "failed to read subject entity version", err)
					return nil, platform.WrapInternal("read subject entity version", err)
				}

				if !found {
					return nil, platform.EntityNotFoundError{EntityType: ref.EntityType, EntityID: ref.EntityID}
				}

				if actual != *input.ExpectedEntityVersion {
					return nil, platform.ConcurrencyConflictError{
						EntityType: ref.EntityType,
						EntityID:   ref.EntityID,
						Expected:   *input.ExpectedEntityVersion,
						Actual:     actual,
					}
				}
			}
		}
	}

	event, err := s.insert(ctx, q, input)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "idempotency") {
			existing, lookupErr := s.findByIdempotencyKey(ctx, q, input.Type, derefOr(input.IdempotencyKey, ""))
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}

		platform.HandleSpanError(&span, "failed to insert event", err)

		return nil, platform.WrapInternal("append event", err)
	}

	if s.notifier != nil {
		body, _ := json.Marshal(map[string]any{"id": event.ID, "type": event.Type, "sequence": event.Sequence})

		if pubErr := s.notifier.PublishEventAppended(ctx, body); pubErr != nil {
			logger.Warnf("failed to publish event_appended notification for %s: %v", event.ID, pubErr)
		}
	}

	if s.audit != nil {
		if mirrErr := s.audit.MirrorEvent(ctx, *event); mirrErr != nil {
			logger.Warnf("failed to mirror event %s to audit archive: %v", event.ID, mirrErr)
		}
	}

	return event, nil
}

func (s *Store) insert(ctx context.Context, q Querier, input eventdom.AppendInput) (*eventdom.Event, error) {
	now := time.Now().UTC()

	occurredAt := now
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}

	effectiveDate := now.Format("2006-01-02")
	if input.EffectiveDate != nil {
		effectiveDate = *input.EffectiveDate
	}

	data, err := json.Marshal(input.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	dims, err := json.Marshal(input.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("marshal dimensions: %w", err)
	}

	entities, err := json.Marshal(input.Entities)
	if err != nil {
		return nil, fmt.Errorf("marshal entity refs: %w", err)
	}

	traces, err := json.Marshal(input.RulesEvaluated)
	if err != nil {
		return nil, fmt.Errorf("marshal rule traces: %w", err)
	}

	id := uuid.NewString()

	const query = `
		INSERT INTO events (
			id, type, schema_version, occurred_at, recorded_at, effective_date,
			tenant_id, legal_entity, actor_type, actor_id, actor_name,
			caused_by, intent_id, correlation_id, data, dimensions, entity_refs,
			rules_evaluated, tags, source_system, source_channel, source_ref,
			idempotency_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23
		)
		RETURNING sequence`

	var sequence int64

	row := q.QueryRowContext(ctx, query,
		id, input.Type, input.SchemaVersion, occurredAt, now, effectiveDate,
		input.Scope.Tenant, input.Scope.LegalEntity, input.Actor.Type, input.Actor.ID, input.Actor.Name,
		input.CausedBy, input.IntentID, input.CorrelationID, data, dims, entities,
		traces, pq.Array(input.Tags), input.Source.System, input.Source.Channel, input.Source.Reference,
		input.IdempotencyKey,
	)

	if err := row.Scan(&sequence); err != nil {
		return nil, err
	}

	return &eventdom.Event{
		ID:             id,
		Sequence:       sequence,
		Type:           input.Type,
		SchemaVersion:  input.SchemaVersion,
		OccurredAt:     occurredAt,
		RecordedAt:     now,
		EffectiveDate:  effectiveDate,
		Scope:          input.Scope,
		Actor:          input.Actor,
		CorrelationID:  input.CorrelationID,
		CausedBy:       input.CausedBy,
		IntentID:       input.IntentID,
		Data:           input.Data,
		Dimensions:     input.Dimensions,
		Entities:       input.Entities,
		RulesEvaluated: input.RulesEvaluated,
		Tags:           input.Tags,
		Source:         input.Source,
		IdempotencyKey: input.IdempotencyKey,
	}, nil
}

func (s *Store) findByIdempotencyKey(ctx context.Context, q Querier, eventType, key string) (*eventdom.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE type = $1 AND idempotency_key = $2`

	row := q.QueryRowContext(ctx, query, eventType, key)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, platform.WrapInternal("lookup idempotency key", err)
	}

	return event, nil
}

// FindByIdempotencyKey returns the event already appended under the given
// idempotency key, or nil if none exists. Intent handlers call this ahead
// of any entity mutation so a retried request short-circuits before it
// touches the entity graph a second time — Append's own idempotency check
// runs too late for that, since it fires after the handler has already
// computed (and would otherwise re-apply) the entity changes.
func (s *Store) FindByIdempotencyKey(ctx context.Context, q Querier, eventType, key string) (*eventdom.Event, error) {
	if q == nil {
		db, err := s.db.GetDB(ctx)
		if err != nil {
			return nil, platform.WrapInternal("get database connection", err)
		}

		q = db
	}

	return s.findByIdempotencyKey(ctx, q, eventType, key)
}

// GetByID returns an event by its store-assigned id.
func (s *Store) GetByID(ctx context.Context, q Querier, id string) (*eventdom.Event, error) {
	if q == nil {
		db, err := s.db.GetDB(ctx)
		if err != nil {
			return nil, platform.WrapInternal("get database connection", err)
		}

		q = db
	}

	const query = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, platform.EntityNotFoundError{EntityType: "event", EntityID: id}
	}

	if err != nil {
		return nil, platform.WrapInternal("get event by id", err)
	}

	return event, nil
}

// GetByIntentID returns the event that resulted from executing the given
// intent, for audit purposes.
func (s *Store) GetByIntentID(ctx context.Context, q Querier, intentID string) (*eventdom.Event, error) {
	if q == nil {
		db, err := s.db.GetDB(ctx)
		if err != nil {
			return nil, platform.WrapInternal("get database connection", err)
		}

		q = db
	}

	const query = `SELECT ` + eventColumns + ` FROM events WHERE intent_id = $1 ORDER BY sequence ASC LIMIT 1`

	event, err := scanEvent(q.QueryRowContext(ctx, query, intentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, platform.EntityNotFoundError{EntityType: "event", EntityID: intentID}
	}

	if err != nil {
		return nil, platform.WrapInternal("get event by intent id", err)
	}

	return event, nil
}

// ReadStream returns a sequence-ordered page of events.
func (s *Store) ReadStream(ctx context.Context, q Querier, params ReadStreamParams) (*StreamPage, error) {
	return s.readFiltered(ctx, q, params, "")
}

// ReadByPartition returns a sequence-ordered page of events scoped to a
// legal entity.
func (s *Store) ReadByPartition(ctx context.Context, q Querier, legalEntity string, params ReadStreamParams) (*StreamPage, error) {
	return s.readFiltered(ctx, q, params, legalEntity)
}

func (s *Store) readFiltered(ctx context.Context, q Querier, params ReadStreamParams, legalEntity string) (*StreamPage, error) {
	if q == nil {
		db, err := s.db.GetDB(ctx)
		if err != nil {
			return nil, platform.WrapInternal("get database connection", err)
		}

		q = db
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	builder := squirrel.Select(eventColumns).
		From("events").
		Where(squirrel.Gt{"sequence": params.AfterSequence}).
		OrderBy("sequence ASC").
		Limit(uint64(limit) + 1).
		PlaceholderFormat(squirrel.Dollar)

	if legalEntity != "" {
		builder = builder.Where(squirrel.Eq{"legal_entity": legalEntity})
	}

	if len(params.EventTypes) > 0 {
		builder = builder.Where(squirrel.Eq{"type": params.EventTypes})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read_stream query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, platform.WrapInternal("read event stream", err)
	}
	defer rows.Close()

	events := make([]eventdom.Event, 0, limit)

	for rows.Next() {
		event, err := scanEventRows(rows)
		if err != nil {
			return nil, platform.WrapInternal("scan event row", err)
		}

		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, platform.WrapInternal("iterate event stream", err)
	}

	page := &StreamPage{Events: events}

	if len(events) > limit {
		page.Events = events[:limit]
		page.HasMore = true
		next := page.Events[len(page.Events)-1].Sequence
		page.NextSequence = &next
	}

	return page, nil
}

func subjectOf(refs []eventdom.EntityRef) (eventdom.EntityRef, bool) {
	for _, ref := range refs {
		if ref.Role == eventdom.RoleSubject {
			return ref, true
		}
	}

	return eventdom.EntityRef{}, false
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}

	return *s
}

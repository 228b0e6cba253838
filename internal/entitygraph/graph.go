// Package entitygraph implements C3: the versioned entity attribute
// store, typed relationships, and per-legal-entity scoping that intent
// handlers read and mutate under OCC.
package entitygraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mcarvalho21/nova-sub000/internal/domain/entitydom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Querier is the same shared-transaction seam as eventstore.Querier.
type Querier = eventstore.Querier

// Cache is the narrow read-through cache seam the graph consults before
// hitting Postgres on get_entity, grounded on common/mredis.
type Cache interface {
	Get(ctx context.Context, key string) (*entitydom.Entity, bool)
	Set(ctx context.Context, key string, entity *entitydom.Entity, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// Graph is the Postgres-backed entity graph.
type Graph struct {
	db    *platform.PostgresConnection
	cache Cache
}

// New builds a Graph. cache may be nil to disable read-through caching.
func New(db *platform.PostgresConnection, cache Cache) *Graph {
	return &Graph{db: db, cache: cache}
}

func (g *Graph) connOrPool(ctx context.Context, q Querier) (Querier, error) {
	if q != nil {
		return q, nil
	}

	return g.db.GetDB(ctx)
}

// CreateEntity inserts a new entity at version 1.
func (g *Graph) CreateEntity(ctx context.Context, q Querier, entityType, entityID string, attrs map[string]any, legalEntity string) (*entitydom.Entity, error) {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "entitygraph.create_entity")
	defer span.End()

	q, err := g.connOrPool(ctx, q)
	if err != nil {
		platform.HandleSpanError(&span, "failed to get database connection", err)
		return nil, platform.WrapInternal("get database connection", err)
	}

	if entityID == "" {
		entityID = uuid.NewString()
	}

	now := time.Now().UTC()

	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal entity attributes: %w", err)
	}

	const query = `
		INSERT INTO entities (entity_type, entity_id, legal_entity, attributes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)`

	if _, err := q.ExecContext(ctx, query, entityType, entityID, legalEntity, data, now); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			platform.HandleSpanError(&span, "duplicate entity", err)
			return nil, platform.EntityConflictError{EntityType: entityType, Message: fmt.Sprintf("%s %s already exists", entityType, entityID)}
		}

		platform.HandleSpanError(&span, "failed to insert entity", err)

		return nil, platform.WrapInternal("create entity", err)
	}

	entity := &entitydom.Entity{
		EntityType:  entityType,
		EntityID:    entityID,
		LegalEntity: legalEntity,
		Attributes:  attrs,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	g.invalidate(ctx, entityType, entityID, legalEntity)

	return entity, nil
}

// UpdateEntity merges newAttrs into the entity's attributes and increments
// its version, raising a concurrency-conflict error if expectedVersion
// does not match the stored version.
func (g *Graph) UpdateEntity(ctx context.Context, q Querier, entityType, entityID string, newAttrs map[string]any, expectedVersion int64, legalEntity string) (*entitydom.Entity, error) {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "entitygraph.update_entity")
	defer span.End()

	q, err := g.connOrPool(ctx, q)
	if err != nil {
		platform.HandleSpanError(&span, "failed to get database connection", err)
		return nil, platform.WrapInternal("get database connection", err)
	}

	current, err := g.getEntityTx(ctx, q, entityType, entityID, legalEntity)
	if err != nil {
		return nil, err
	}

	if current == nil {
		return nil, platform.EntityNotFoundError{EntityType: entityType, EntityID: entityID}
	}

	if current.Version != expectedVersion {
		return nil, platform.ConcurrencyConflictError{
			EntityType: entityType,
			EntityID:   entityID,
			Expected:   expectedVersion,
			Actual:     current.Version,
		}
	}

	merged := current.Attributes.Clone()
	for k, v := range newAttrs {
		merged[k] = v
	}

	now := time.Now().UTC()

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal entity attributes: %w", err)
	}

	const query = `
		UPDATE entities SET attributes = $1, version = version + 1, updated_at = $2
		WHERE entity_type = $3 AND entity_id = $4 AND legal_entity = $5 AND version = $6`

	result, err := q.ExecContext(ctx, query, data, now, entityType, entityID, legalEntity, expectedVersion)
	if err != nil {
		platform.HandleSpanError(&span, "failed to update entity", err)
		return nil, platform.WrapInternal("update entity", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, platform.WrapInternal("read rows affected", err)
	}

	if rows == 0 {
		return nil, platform.ConcurrencyConflictError{
			EntityType: entityType,
			EntityID:   entityID,
			Expected:   expectedVersion,
			Actual:     current.Version,
		}
	}

	g.invalidate(ctx, entityType, entityID, legalEntity)

	return &entitydom.Entity{
		EntityType:  entityType,
		EntityID:    entityID,
		LegalEntity: legalEntity,
		Attributes:  merged,
		Version:     expectedVersion + 1,
		CreatedAt:   current.CreatedAt,
		UpdatedAt:   now,
	}, nil
}

// GetEntity returns an entity, consulting the read-through cache when
// outside a caller transaction (cached reads inside a transaction could
// observe stale data relative to uncommitted writes in the same tx).
func (g *Graph) GetEntity(ctx context.Context, q Querier, entityType, entityID, legalEntity string) (*entitydom.Entity, error) {
	if q == nil && g.cache != nil {
		if cached, ok := g.cache.Get(ctx, cacheKey(entityType, entityID, legalEntity)); ok {
			return cached, nil
		}
	}

	resolved, err := g.connOrPool(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	entity, err := g.getEntityTx(ctx, resolved, entityType, entityID, legalEntity)
	if err != nil {
		return nil, err
	}

	if q == nil && g.cache != nil && entity != nil {
		g.cache.Set(ctx, cacheKey(entityType, entityID, legalEntity), entity, 10*time.Minute)
	}

	return entity, nil
}

func (g *Graph) getEntityTx(ctx context.Context, q Querier, entityType, entityID, legalEntity string) (*entitydom.Entity, error) {
	const query = `
		SELECT entity_type, entity_id, legal_entity, attributes, version, created_at, updated_at
		FROM entities WHERE entity_type = $1 AND entity_id = $2 AND legal_entity = $3`

	row := q.QueryRowContext(ctx, query, entityType, entityID, legalEntity)

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, platform.WrapInternal("get entity", err)
	}

	return entity, nil
}

// GetEntityByTypeAndAttribute probes for an entity with a given attribute
// value, used for uniqueness checks (vendor name, item SKU).
func (g *Graph) GetEntityByTypeAndAttribute(ctx context.Context, q Querier, entityType, attr string, value any, legalEntity string) (*entitydom.Entity, error) {
	q, err := g.connOrPool(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	const query = `
		SELECT entity_type, entity_id, legal_entity, attributes, version, created_at, updated_at
		FROM entities
		WHERE entity_type = $1 AND legal_entity = $2 AND attributes ->> $3 = $4
		LIMIT 1`

	row := q.QueryRowContext(ctx, query, entityType, legalEntity, attr, fmt.Sprintf("%v", value))

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, platform.WrapInternal("get entity by type and attribute", err)
	}

	return entity, nil
}

// GetEntityVersion implements eventstore.EntityVersionReader.
func (g *Graph) GetEntityVersion(ctx context.Context, q eventstore.Querier, entityType, entityID, legalEntity string) (int64, bool, error) {
	entity, err := g.getEntityTx(ctx, q, entityType, entityID, legalEntity)
	if err != nil {
		return 0, false, err
	}

	if entity == nil {
		return 0, false, nil
	}

	return entity.Version, true, nil
}

func (g *Graph) invalidate(ctx context.Context, entityType, entityID, legalEntity string) {
	if g.cache != nil {
		g.cache.Invalidate(ctx, cacheKey(entityType, entityID, legalEntity))
	}
}

func cacheKey(entityType, entityID, legalEntity string) string {
	return fmt.Sprintf("entity:%s:%s:%s", legalEntity, entityType, entityID)
}

func scanEntity(row interface{ Scan(dest ...any) error }) (*entitydom.Entity, error) {
	var (
		e    entitydom.Entity
		data []byte
	)

	if err := row.Scan(&e.EntityType, &e.EntityID, &e.LegalEntity, &data, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.Attributes); err != nil {
			return nil, err
		}
	}

	return &e, nil
}

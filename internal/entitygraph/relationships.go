package entitygraph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/entitydom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// CreateRelationship inserts a directed, typed edge between two entities,
// e.g. a vendor's has_contact or ordered_from relationship.
func (g *Graph) CreateRelationship(ctx context.Context, q Querier, fromType, fromID, toType, toID, relation string, attrs map[string]any) (*entitydom.Relationship, error) {
	q, err := g.connOrPool(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal relationship attributes: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	const query = `
		INSERT INTO entity_relationships (id, from_entity_type, from_entity_id, to_entity_type, to_entity_id, relation_type, attributes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := q.ExecContext(ctx, query, id, fromType, fromID, toType, toID, relation, data, now); err != nil {
		return nil, platform.WrapInternal("create relationship", err)
	}

	return &entitydom.Relationship{
		ID: id, FromType: fromType, FromID: fromID, ToType: toType, ToID: toID,
		RelationType: relation, Attributes: attrs, CreatedAt: now,
	}, nil
}

// GetRelatedEntities returns every entity related to (entityType, entityID)
// via relation, following from→to direction.
func (g *Graph) GetRelatedEntities(ctx context.Context, q Querier, entityType, entityID, relation, legalEntity string) ([]*entitydom.Entity, error) {
	q, err := g.connOrPool(ctx, q)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	const query = `
		SELECT e.entity_type, e.entity_id, e.legal_entity, e.attributes, e.version, e.created_at, e.updated_at
		FROM entity_relationships r
		JOIN entities e ON e.entity_type = r.to_entity_type AND e.entity_id = r.to_entity_id AND e.legal_entity = $4
		WHERE r.from_entity_type = $1 AND r.from_entity_id = $2 AND r.relation_type = $3`

	rows, err := q.QueryContext(ctx, query, entityType, entityID, relation, legalEntity)
	if err != nil {
		return nil, platform.WrapInternal("get related entities", err)
	}
	defer rows.Close()

	var related []*entitydom.Entity

	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, platform.WrapInternal("scan related entity row", err)
		}

		related = append(related, entity)
	}

	return related, rows.Err()
}

// Package entitydom holds the mutable write-side entity types handlers use
// to enforce business rules and OCC.
package entitydom

import (
	"time"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// Entity is the versioned write-side cache a handler reads and mutates
// under OCC.
type Entity struct {
	EntityType  string            `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	LegalEntity string            `json:"legal_entity"`
	Attributes  eventdom.Payload  `json:"attributes"`
	Version     int64             `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID           string           `json:"id"`
	FromType     string           `json:"from_entity_type"`
	FromID       string           `json:"from_entity_id"`
	ToType       string           `json:"to_entity_type"`
	ToID         string           `json:"to_entity_id"`
	RelationType string           `json:"relation_type"`
	Attributes   eventdom.Payload `json:"attributes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

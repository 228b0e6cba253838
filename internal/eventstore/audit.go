package eventstore

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// MongoAuditMirror writes a best-effort denormalized copy of every
// appended event to Mongo, giving operators a schema-agnostic archive to
// query across event types without touching the relational event table.
// The dead-letter archive writes to its own collection.
type MongoAuditMirror struct {
	mongo      *platform.MongoConnection
	collection string
}

// NewMongoAuditMirror builds a mirror writing to the given collection.
func NewMongoAuditMirror(mongo *platform.MongoConnection, collection string) *MongoAuditMirror {
	return &MongoAuditMirror{mongo: mongo, collection: collection}
}

// MirrorEvent inserts event into the audit collection.
func (m *MongoAuditMirror) MirrorEvent(ctx context.Context, event eventdom.Event) error {
	coll, err := m.mongo.Collection(ctx, m.collection)
	if err != nil {
		return err
	}

	_, err = coll.InsertOne(ctx, event)

	return err
}

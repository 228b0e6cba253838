package projectionengine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// DeadLetterArchive is the narrow Mongo seam the engine mirrors
// dead-letter entries to for operator inspection outside the relational
// store, mirroring eventstore.AuditMirror's fire-and-forget shape.
type DeadLetterArchive interface {
	MirrorDeadLetter(ctx context.Context, entry projectiondom.DeadLetterEntry) error
}

// DeadLetterRepository persists dead_letter_events rows.
type DeadLetterRepository struct {
	db      *platform.PostgresConnection
	archive DeadLetterArchive
}

// NewDeadLetterRepository builds a DeadLetterRepository. archive may be
// nil to disable the Mongo mirror.
func NewDeadLetterRepository(db *platform.PostgresConnection, archive DeadLetterArchive) *DeadLetterRepository {
	return &DeadLetterRepository{db: db, archive: archive}
}

// Record inserts a dead-letter row for a failed handler invocation.
func (r *DeadLetterRepository) Record(ctx context.Context, q Querier, eventID string, eventSequence int64, projectionType, errMessage, errStack string) error {
	if q == nil {
		db, err := r.db.GetDB(ctx)
		if err != nil {
			return platform.WrapInternal("get database connection", err)
		}

		q = db
	}

	entry := projectiondom.DeadLetterEntry{
		ID:             uuid.NewString(),
		EventID:        eventID,
		EventSequence:  eventSequence,
		ProjectionType: projectionType,
		ErrorMessage:   errMessage,
		ErrorStack:     errStack,
		CreatedAt:      time.Now().UTC(),
	}

	const query = `
		INSERT INTO dead_letter_events (id, event_id, event_sequence, projection_type, error_message, error_stack, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`

	if _, err := q.ExecContext(ctx, query, entry.ID, entry.EventID, entry.EventSequence, entry.ProjectionType,
		entry.ErrorMessage, entry.ErrorStack, entry.CreatedAt); err != nil {
		return platform.WrapInternal("record dead letter", err)
	}

	if r.archive != nil {
		if err := r.archive.MirrorDeadLetter(ctx, entry); err != nil {
			platform.LoggerFromContext(ctx).Warnf("failed to mirror dead letter %s to archive: %v", entry.ID, err)
		}
	}

	return nil
}

// MongoDeadLetterArchive mirrors dead-letter entries into Mongo.
type MongoDeadLetterArchive struct {
	mongo      *platform.MongoConnection
	collection string
}

// NewMongoDeadLetterArchive builds a MongoDeadLetterArchive.
func NewMongoDeadLetterArchive(mongo *platform.MongoConnection, collection string) *MongoDeadLetterArchive {
	return &MongoDeadLetterArchive{mongo: mongo, collection: collection}
}

// MirrorDeadLetter inserts entry into the archive collection.
func (m *MongoDeadLetterArchive) MirrorDeadLetter(ctx context.Context, entry projectiondom.DeadLetterEntry) error {
	coll, err := m.mongo.Collection(ctx, m.collection)
	if err != nil {
		return err
	}

	_, err = coll.InsertOne(ctx, entry)

	return err
}

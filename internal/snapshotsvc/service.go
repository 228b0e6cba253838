// Package snapshotsvc implements C7: point-in-time capture and restore of
// projection tables, operating schema-agnostically over whatever table a
// projection type is registered against.
package snapshotsvc

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Querier is the shared-transaction seam, identical in shape to C1's.
type Querier = eventstore.Querier

// SubscriptionService is the narrow view of C6 needed to snap a restored
// projection's cursor back to the snapshot's sequence.
type SubscriptionService interface {
	ListByProjectionType(ctx context.Context, q Querier, projectionType string) ([]*projectiondom.Subscription, error)
	UpdateCursor(ctx context.Context, q Querier, id, lastProcessedID string, lastProcessedSequence int64) error
}

// Service implements create/restore/list/invalidate over registered
// projection tables.
type Service struct {
	db     *platform.PostgresConnection
	subs   SubscriptionService
	tables map[string]projectiondom.TableIdentity
}

// NewService builds a Service.
func NewService(db *platform.PostgresConnection, subs SubscriptionService) *Service {
	return &Service{db: db, subs: subs, tables: make(map[string]projectiondom.TableIdentity)}
}

// RegisterTable records a projection type's table identity at startup so
// the service can read/write it without type-specific code.
func (s *Service) RegisterTable(identity projectiondom.TableIdentity) {
	s.tables[identity.ProjectionType] = identity
}

func (s *Service) identity(projectionType string) (projectiondom.TableIdentity, error) {
	identity, ok := s.tables[projectionType]
	if !ok {
		return projectiondom.TableIdentity{}, platform.EntityNotFoundError{EntityType: "projection_table_identity", EntityID: projectionType}
	}

	return identity, nil
}

// CreateSnapshot reads the current cursor (the minimum across the
// projection type's subscriptions, so the snapshot is valid for all of
// them) and the current table rows, and persists both as a fresh,
// non-stale snapshot.
func (s *Service) CreateSnapshot(ctx context.Context, projectionType string) (*projectiondom.Snapshot, error) {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "snapshotsvc.create_snapshot")
	defer span.End()

	identity, err := s.identity(projectionType)
	if err != nil {
		platform.HandleSpanError(&span, "unregistered projection table", err)
		return nil, err
	}

	db, err := s.db.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	subs, err := s.subs.ListByProjectionType(ctx, db, projectionType)
	if err != nil {
		platform.HandleSpanError(&span, "failed to list subscriptions for snapshot cursor", err)
		return nil, err
	}

	var sequence int64

	for i, sub := range subs {
		if i == 0 || sub.LastProcessedSequence < sequence {
			sequence = sub.LastProcessedSequence
		}
	}

	rows, err := s.readAllRows(ctx, db, identity)
	if err != nil {
		platform.HandleSpanError(&span, "failed to read projection rows for snapshot", err)
		return nil, err
	}

	snapshot := &projectiondom.Snapshot{
		SnapshotID:     uuid.NewString(),
		ProjectionType: projectionType,
		SequenceNumber: sequence,
		SnapshotData:   rows,
		IsStale:        false,
	}

	if err := s.insertSnapshot(ctx, db, snapshot); err != nil {
		platform.HandleSpanError(&span, "failed to persist snapshot", err)
		return nil, err
	}

	return snapshot, nil
}

// RestoreFromSnapshot truncates the projection table, bulk-inserts the
// snapshot's rows, and resets every subscription of that projection
// type's cursor to the snapshot's sequence, all in one transaction.
func (s *Service) RestoreFromSnapshot(ctx context.Context, projectionType, snapshotID string) error {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "snapshotsvc.restore_from_snapshot")
	defer span.End()

	identity, err := s.identity(projectionType)
	if err != nil {
		platform.HandleSpanError(&span, "unregistered projection table", err)
		return err
	}

	snapshot, err := s.GetByID(ctx, snapshotID)
	if err != nil {
		platform.HandleSpanError(&span, "failed to load snapshot", err)
		return err
	}

	db, err := s.db.GetDB(ctx)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return platform.WrapInternal("begin restore transaction", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", identity.TableName)); err != nil {
		_ = tx.Rollback()
		return platform.WrapInternal("truncate projection table", err)
	}

	for _, row := range snapshot.SnapshotData {
		if err := insertRow(ctx, tx, identity.TableName, row); err != nil {
			_ = tx.Rollback()
			return platform.WrapInternal("bulk-insert snapshot row", err)
		}
	}

	subs, err := s.subs.ListByProjectionType(ctx, tx, projectionType)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, sub := range subs {
		if err := s.subs.UpdateCursor(ctx, tx, sub.ID, "", snapshot.SequenceNumber); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return platform.WrapInternal("commit restore transaction", err)
	}

	return nil
}

// GetLatestValidSnapshot returns the newest non-stale snapshot for a
// projection type, or a not-found error if none exists.
func (s *Service) GetLatestValidSnapshot(ctx context.Context, projectionType string) (*projectiondom.Snapshot, error) {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	query, args, err := squirrel.Select(snapshotColumns).
		From("projection_snapshots").
		Where(squirrel.Eq{"projection_type": projectionType, "is_stale": false}).
		OrderBy("sequence_number DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, platform.WrapInternal("build latest snapshot query", err)
	}

	snapshot, err := scanSnapshot(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, platform.EntityNotFoundError{EntityType: "snapshot", EntityID: projectionType}
	}

	return snapshot, nil
}

// InvalidateSnapshots marks stale every snapshot of a projection type
// whose sequence_number is at or after fromSequence, used when a
// back-dated event arrives whose effective date predates a snapshot's
// point-in-time.
func (s *Service) InvalidateSnapshots(ctx context.Context, projectionType string, fromSequence int64) error {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	const query = `UPDATE projection_snapshots SET is_stale = true WHERE projection_type = $1 AND sequence_number >= $2`

	if _, err := db.ExecContext(ctx, query, projectionType, fromSequence); err != nil {
		return platform.WrapInternal("invalidate snapshots", err)
	}

	return nil
}

// ListSnapshots returns every snapshot recorded for a projection type,
// newest first.
func (s *Service) ListSnapshots(ctx context.Context, projectionType string) ([]*projectiondom.Snapshot, error) {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	query, args, err := squirrel.Select(snapshotColumns).
		From("projection_snapshots").
		Where(squirrel.Eq{"projection_type": projectionType}).
		OrderBy("sequence_number DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, platform.WrapInternal("build list snapshots query", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, platform.WrapInternal("list snapshots", err)
	}
	defer rows.Close()

	var snapshots []*projectiondom.Snapshot

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, platform.WrapInternal("scan snapshot row", err)
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, rows.Err()
}

// GetByID loads a single snapshot by id.
func (s *Service) GetByID(ctx context.Context, id string) (*projectiondom.Snapshot, error) {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get database connection", err)
	}

	query, args, err := squirrel.Select(snapshotColumns).
		From("projection_snapshots").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, platform.WrapInternal("build get snapshot query", err)
	}

	snapshot, err := scanSnapshot(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, platform.EntityNotFoundError{EntityType: "snapshot", EntityID: id}
	}

	return snapshot, nil
}

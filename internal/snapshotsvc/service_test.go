package snapshotsvc

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

type fakeSubs struct {
	subs []*projectiondom.Subscription
}

func (f *fakeSubs) ListByProjectionType(ctx context.Context, q Querier, projectionType string) ([]*projectiondom.Subscription, error) {
	return f.subs, nil
}

func (f *fakeSubs) UpdateCursor(ctx context.Context, q Querier, id, lastProcessedID string, lastProcessedSequence int64) error {
	return nil
}

func testConn(t *testing.T) (*platform.PostgresConnection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))

	return &platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}, mock
}

func TestService_CreateSnapshot_UnregisteredProjectionTypeIsNotFound(t *testing.T) {
	pc, _ := testConn(t)
	svc := NewService(pc, &fakeSubs{})

	_, err := svc.CreateSnapshot(context.Background(), "unknown_projection")

	require.Error(t, err)
	var notFound platform.EntityNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestService_CreateSnapshot_CapturesMinimumCursorAcrossSubscriptions(t *testing.T) {
	pc, mock := testConn(t)
	svc := NewService(pc, &fakeSubs{subs: []*projectiondom.Subscription{
		{ID: "sub-1", LastProcessedSequence: 10},
		{ID: "sub-2", LastProcessedSequence: 4},
	}})
	svc.RegisterTable(projectiondom.TableIdentity{ProjectionType: "vendor_list", TableName: "vendor_list"})

	rows := sqlmock.NewRows([]string{"vendor_id", "name"}).AddRow("v-1", "Acme Co")
	mock.ExpectQuery(`SELECT \* FROM vendor_list`).WillReturnRows(rows)
	mock.ExpectQuery(`INSERT INTO projection_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))

	snapshot, err := svc.CreateSnapshot(context.Background(), "vendor_list")

	require.NoError(t, err)
	assert.Equal(t, int64(4), snapshot.SequenceNumber)
	assert.Len(t, snapshot.SnapshotData, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_InvalidateSnapshots_MarksNewerSnapshotsStale(t *testing.T) {
	pc, mock := testConn(t)
	svc := NewService(pc, &fakeSubs{})

	mock.ExpectExec(`UPDATE projection_snapshots SET is_stale = true`).WillReturnResult(sqlmock.NewResult(0, 2))

	err := svc.InvalidateSnapshots(context.Background(), "vendor_list", 5)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

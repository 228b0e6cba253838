package subscriptionsvc

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
)

func subRow(id, projType string, status projectiondom.SubscriptionStatus, lastSeq int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "projection_type", "subscriber_type", "subscriber_id", "event_types",
		"last_processed_id", "last_processed_sequence", "status", "batch_size", "created_at", "updated_at",
	}).AddRow(id, projType, "projection", "worker-1", []byte(`["mdm.vendor.created"]`), nil, lastSeq, status, 100, now, now)
}

func TestService_Create_InsertsActiveSubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO event_subscriptions`).WillReturnResult(sqlmock.NewResult(0, 1))

	svc := New(nil)

	sub, err := svc.Create(context.Background(), db, projectiondom.Subscription{
		ProjectionType: "vendor_list", SubscriberType: "projection", SubscriberID: "worker-1",
		EventTypes: []string{"mdm.vendor.created"},
	})

	require.NoError(t, err)
	assert.Equal(t, projectiondom.StatusActive, sub.Status)
	assert.Equal(t, 100, sub.BatchSize)
	assert.NotEmpty(t, sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetByID_NotFoundReturnsEntityNotFoundError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM event_subscriptions WHERE id = \$1`).WillReturnRows(sqlmock.NewRows([]string{
		"id", "projection_type", "subscriber_type", "subscriber_id", "event_types",
		"last_processed_id", "last_processed_sequence", "status", "batch_size", "created_at", "updated_at",
	}))

	svc := New(nil)

	_, err = svc.GetByID(context.Background(), db, "missing")
	require.Error(t, err)
}

func TestService_BeginReset_NoopWhenStatusNotResettable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE event_subscriptions SET status = \$1, last_processed_sequence = 0`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := New(nil)

	sub, err := svc.BeginReset(context.Background(), db, "sub-1")

	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_BeginReset_TransitionsToResettingAndReturnsUpdatedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE event_subscriptions SET status = \$1, last_processed_sequence = 0`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM event_subscriptions WHERE id = \$1`).
		WillReturnRows(subRow("sub-1", "vendor_list", projectiondom.StatusResetting, 0))

	svc := New(nil)

	sub, err := svc.BeginReset(context.Background(), db, "sub-1")

	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, projectiondom.StatusResetting, sub.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateCursor_Advances(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE event_subscriptions SET last_processed_id = \$1, last_processed_sequence = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := New(nil)

	err = svc.UpdateCursor(context.Background(), db, "sub-1", "evt-5", 5)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

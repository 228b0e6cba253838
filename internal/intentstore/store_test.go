package intentstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

func storedIntentRow(id, actorID string, status intentdom.Status) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "type", "status", "actor_type", "actor_id", "actor_name", "legal_entity", "data",
		"required_approver_role", "approved_by_id", "approved_by_name", "approval_reason",
		"rejected_by_id", "rejected_by_name", "rejection_reason", "result_event_id", "execution_error",
		"correlation_id", "idempotency_key", "effective_date", "occurred_at", "created_at", "updated_at",
	}).AddRow(
		id, "ap.invoice.pay", status, "human", actorID, "AP Clerk", "entity-1", []byte(`{}`),
		"ap_manager", nil, nil, nil,
		nil, nil, nil, nil, nil,
		"corr-1", nil, nil, nil, now, now,
	)
}

func TestStore_Create_PersistsPendingIntent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO stored_intents`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := New(nil)

	stored, err := store.Create(context.Background(), db, "", intentdom.Intent{
		Type: "ap.invoice.pay", Actor: eventdom.Actor{Type: "human", ID: "clerk-1"}, LegalEntity: "entity-1",
	}, intentdom.StatusPendingApproval, "ap_manager")

	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, intentdom.StatusPendingApproval, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Approve_RejectsSameActorAsOriginator(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM stored_intents WHERE id = \$1`).
		WillReturnRows(storedIntentRow("intent-1", "clerk-1", intentdom.StatusPendingApproval))

	store := New(nil)

	_, err = store.Approve(context.Background(), db, "intent-1", "clerk-1", "AP Clerk", nil)

	require.Error(t, err)
	var forbidden platform.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Approve_HappyPathByDifferentApprover(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM stored_intents WHERE id = \$1`).
		WillReturnRows(storedIntentRow("intent-1", "clerk-1", intentdom.StatusPendingApproval))
	mock.ExpectExec(`UPDATE stored_intents SET status = \$1, approved_by_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM stored_intents WHERE id = \$1`).
		WillReturnRows(storedIntentRow("intent-1", "clerk-1", intentdom.StatusApproved))

	store := New(nil)

	stored, err := store.Approve(context.Background(), db, "intent-1", "manager-1", "AP Manager", nil)

	require.NoError(t, err)
	assert.Equal(t, intentdom.StatusApproved, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM stored_intents WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "type", "status", "actor_type", "actor_id", "actor_name", "legal_entity", "data",
			"required_approver_role", "approved_by_id", "approved_by_name", "approval_reason",
			"rejected_by_id", "rejected_by_name", "rejection_reason", "result_event_id", "execution_error",
			"correlation_id", "idempotency_key", "effective_date", "occurred_at", "created_at", "updated_at",
		}))

	store := New(nil)

	_, err = store.GetByID(context.Background(), db, "missing")

	require.Error(t, err)
}

package ap

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

func entityRow(entityType, id, legalEntity, attrsJSON string, version int64) *sqlmock.Rows {
	now := time.Now().UTC()

	return sqlmock.NewRows([]string{
		"entity_type", "entity_id", "legal_entity", "attributes", "version", "created_at", "updated_at",
	}).AddRow(entityType, id, legalEntity, []byte(attrsJSON), version, now, now)
}

func TestPOCreate_HappyPathLinksVendorRelationship(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewPOCreate(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(entityRow("vendor", "v-1", "entity-1", `{"name":"Acme Co"}`, 1))
	mock.ExpectExec(`INSERT INTO entities`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO entity_relationships`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`INSERT INTO events`).WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(1)))
	mock.ExpectCommit()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.po.create",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "clerk-1"},
		Data:        eventdom.Payload{"vendor_id": "v-1", "total": float64(500), "currency": "USD"},
	}, "intent-1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPOCreate_UnknownVendorIsEntityNotFound(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewPOCreate(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(sqlmock.NewRows([]string{
		"entity_type", "entity_id", "legal_entity", "attributes", "version", "created_at", "updated_at",
	}))
	mock.ExpectRollback()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.po.create",
		LegalEntity: "entity-1",
		Data:        eventdom.Payload{"vendor_id": "missing"},
	}, "intent-2")

	require.Error(t, err)
	require.Nil(t, result)

	var notFound platform.EntityNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

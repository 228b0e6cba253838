package ap

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/entitygraph"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/projectionengine"
	"github.com/mcarvalho21/nova-sub000/internal/rulesengine"
	"github.com/mcarvalho21/nova-sub000/internal/subscriptionsvc"
)

func testDeps(t *testing.T) (Deps, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))
	pc := &platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}

	subs := subscriptionsvc.New(pc)
	deadLtr := projectionengine.NewDeadLetterRepository(pc, nil)

	return Deps{
		DB:          pc,
		Events:      eventstore.NewStore(pc, nil, nil, nil, nil),
		Entities:    entitygraph.New(pc, nil),
		Rules:       rulesengine.NewEngine(nil),
		Projections: projectionengine.NewEngine(projectionengine.NewRegistry(), subs, deadLtr, nil),
		Intents:     nil,
	}, mock
}

func TestVendorCreate_HappyPathAppendsEventAndCommits(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewVendorCreate(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(sqlmock.NewRows([]string{
		"entity_type", "entity_id", "legal_entity", "attributes", "version", "created_at", "updated_at",
	}))
	mock.ExpectExec(`INSERT INTO entities`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`INSERT INTO events`).WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(1)))
	mock.ExpectCommit()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "mdm.vendor.create",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "clerk-1"},
		Data:        eventdom.Payload{"name": "Acme Co", "credit_limit": float64(1000)},
	}, "intent-1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, intentdom.StatusExecuted, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorCreate_EmptyNameIsRejectedWithoutTouchingDB(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewVendorCreate(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "mdm.vendor.create",
		LegalEntity: "entity-1",
		Data:        eventdom.Payload{"name": "  "},
	}, "intent-2")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

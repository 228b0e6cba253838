package projectionengine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

type resettableHandler struct {
	succeedingHandler
	resetCalled bool
}

func (h *resettableHandler) Reset(ctx context.Context, q Querier) error {
	h.resetCalled = true
	return nil
}

func TestRebuilder_Rebuild_ResetsReplaysAndReactivates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))
	pc := &platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}

	handler := &resettableHandler{succeedingHandler: succeedingHandler{stubProjHandler{
		projType: "vendor_list", eventTypes: []string{"mdm.vendor.created"},
	}}}

	reg := NewRegistry()
	reg.Register(handler)

	subs := &fakeSubService{}
	engine := NewEngine(reg, subs, NewDeadLetterRepository(pc, nil), nil)

	events := &fakeEventReader{page: &eventstore.StreamPage{
		Events:  []eventdom.Event{{ID: "evt-1", Sequence: 1, Type: "mdm.vendor.created"}},
		HasMore: false,
	}}

	rebuilder := NewRebuilder(engine, events, pc)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := rebuilder.Rebuild(context.Background(), "vendor_list", "sub-1", 0)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, handler.resetCalled)
	assert.Equal(t, 1, result.EventsProcessed)
	assert.Equal(t, 0, result.DeadLettered)
	assert.Equal(t, []string{"sub-1"}, subs.advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebuilder_Rebuild_DeadLettersFailingEventButStillAdvancesCursor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))
	pc := &platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}

	reg := NewRegistry()
	reg.Register(failingHandler{stubProjHandler{projType: "ap_aging", eventTypes: []string{"ap.invoice.submitted"}}})

	subs := &fakeSubService{}
	engine := NewEngine(reg, subs, NewDeadLetterRepository(pc, nil), nil)

	events := &fakeEventReader{page: &eventstore.StreamPage{
		Events:  []eventdom.Event{{ID: "evt-2", Sequence: 2, Type: "ap.invoice.submitted"}},
		HasMore: false,
	}}

	rebuilder := NewRebuilder(engine, events, pc)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO dead_letter_events`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := rebuilder.Rebuild(context.Background(), "ap_aging", "sub-2", 0)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.EventsProcessed)
	assert.Equal(t, 1, result.DeadLettered)
	assert.Equal(t, []string{"sub-2"}, subs.advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

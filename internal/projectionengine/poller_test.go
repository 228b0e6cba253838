package projectionengine

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

type fakeEventReader struct {
	page *eventstore.StreamPage
	err  error
}

func (f *fakeEventReader) ReadStream(ctx context.Context, q eventstore.Querier, params eventstore.ReadStreamParams) (*eventstore.StreamPage, error) {
	return f.page, f.err
}

func testPollerConn(t *testing.T) (*platform.PostgresConnection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))

	return &platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}, mock
}

func TestPoller_PollOnce_AdvancesCursorOnSuccess(t *testing.T) {
	pc, mock := testPollerConn(t)

	reg := NewRegistry()
	reg.Register(succeedingHandler{stubProjHandler{projType: "vendor_list", eventTypes: []string{"mdm.vendor.created"}}})

	subs := &fakeSubService{}
	engine := NewEngine(reg, subs, NewDeadLetterRepository(pc, nil), nil)

	events := &fakeEventReader{page: &eventstore.StreamPage{
		Events: []eventdom.Event{{ID: "evt-1", Sequence: 1, Type: "mdm.vendor.created"}},
	}}

	poller := NewPoller(engine, events, nil, pc, nil, 0, 0)

	activeSub := &projectiondom.Subscription{ID: "sub-1", ProjectionType: "vendor_list", BatchSize: 10}
	subs.listActive = []*projectiondom.Subscription{activeSub}

	// engine.subs is the fakeSubService (served in-memory), so only the
	// per-event transactional dispatch below touches sqlmock.
	mock.ExpectBegin()
	mock.ExpectCommit()

	poller.pollOnce(context.Background())

	assert.Contains(t, subs.advanced, "sub-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoller_PollOnce_ForceAdvancesPastPoisonEventAfterMaxAttempts(t *testing.T) {
	pc, mock := testPollerConn(t)

	reg := NewRegistry()
	reg.Register(failingHandler{stubProjHandler{projType: "vendor_list", eventTypes: []string{"mdm.vendor.created"}}})

	subs := &fakeSubService{}
	engine := NewEngine(reg, subs, NewDeadLetterRepository(pc, nil), nil)

	events := &fakeEventReader{page: &eventstore.StreamPage{
		Events: []eventdom.Event{{ID: "evt-poison", Sequence: 1, Type: "mdm.vendor.created"}},
	}}

	poller := NewPoller(engine, events, nil, pc, nil, 0, 1)

	activeSub := &projectiondom.Subscription{ID: "sub-1", ProjectionType: "vendor_list", BatchSize: 10}
	subs.listActive = []*projectiondom.Subscription{activeSub}

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO dead_letter_events`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	poller.pollOnce(context.Background())

	assert.Contains(t, subs.advanced, "sub-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

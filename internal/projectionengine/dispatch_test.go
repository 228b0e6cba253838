package projectionengine

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
)

type fakeSubService struct {
	byProjType map[string][]*projectiondom.Subscription
	listActive []*projectiondom.Subscription
	advanced   []string
}

func (f *fakeSubService) ListByProjectionType(ctx context.Context, q Querier, projectionType string) ([]*projectiondom.Subscription, error) {
	return f.byProjType[projectionType], nil
}

func (f *fakeSubService) ListActive(ctx context.Context, q Querier) ([]*projectiondom.Subscription, error) {
	return f.listActive, nil
}

func (f *fakeSubService) UpdateCursor(ctx context.Context, q Querier, id, lastProcessedID string, lastProcessedSequence int64) error {
	f.advanced = append(f.advanced, id)
	return nil
}

func (f *fakeSubService) BeginReset(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	return nil, nil
}

func (f *fakeSubService) EndReset(ctx context.Context, q Querier, id string) (*projectiondom.Subscription, error) {
	return nil, nil
}

type succeedingHandler struct{ stubProjHandler }

func (h succeedingHandler) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	return nil
}

type failingHandler struct{ stubProjHandler }

func (h failingHandler) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	return errors.New("boom")
}

func TestEngine_ProcessEvent_AdvancesCursorsForTouchedProjections(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := NewRegistry()
	reg.Register(succeedingHandler{stubProjHandler{projType: "vendor_list", eventTypes: []string{"mdm.vendor.created"}}})

	subs := &fakeSubService{byProjType: map[string][]*projectiondom.Subscription{
		"vendor_list": {{ID: "sub-1"}},
	}}

	deadLtr := NewDeadLetterRepository(nil, nil)
	engine := NewEngine(reg, subs, deadLtr, nil)

	event := eventdom.Event{ID: "evt-1", Sequence: 1, Type: "mdm.vendor.created"}

	err = engine.ProcessEvent(context.Background(), db, event)

	require.NoError(t, err)
	assert.Equal(t, []string{"sub-1"}, subs.advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ProcessEvent_DeadLettersFailingHandlerWithoutAbortingOthers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO dead_letter_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	reg := NewRegistry()
	reg.Register(failingHandler{stubProjHandler{projType: "ap_aging", eventTypes: []string{"ap.invoice.submitted"}}})
	reg.Register(succeedingHandler{stubProjHandler{projType: "ap_invoice_list", eventTypes: []string{"ap.invoice.submitted"}}})

	subs := &fakeSubService{byProjType: map[string][]*projectiondom.Subscription{
		"ap_invoice_list": {{ID: "sub-2"}},
	}}

	deadLtr := NewDeadLetterRepository(nil, nil)
	engine := NewEngine(reg, subs, deadLtr, nil)

	event := eventdom.Event{ID: "evt-2", Sequence: 2, Type: "ap.invoice.submitted"}

	err = engine.ProcessEvent(context.Background(), db, event)

	require.NoError(t, err)
	// only the succeeding handler's projection type advanced a cursor.
	assert.Equal(t, []string{"sub-2"}, subs.advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ProcessEvent_NoHandlersIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := NewRegistry()
	subs := &fakeSubService{byProjType: map[string][]*projectiondom.Subscription{}}
	engine := NewEngine(reg, subs, NewDeadLetterRepository(nil, nil), nil)

	err = engine.ProcessEvent(context.Background(), db, eventdom.Event{ID: "evt-3", Type: "no.handlers"})

	require.NoError(t, err)
	assert.Empty(t, subs.advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

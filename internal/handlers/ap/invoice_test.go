package ap

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
)

// eventDataHasVendorID matches the marshalled `data` argument of an
// `INSERT INTO events` call, asserting the emitted event payload actually
// carries the given vendor_id rather than relying on a hand-built payload.
type eventDataHasVendorID struct{ vendorID string }

func (m eventDataHasVendorID) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}

	got, _ := payload["vendor_id"].(string)

	return got == m.vendorID
}

func TestInvoiceSubmit_HappyPathWithoutPO(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewInvoiceSubmit(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(entityRow("vendor", "v-1", "entity-1", `{"name":"Acme Co"}`, 1))
	mock.ExpectExec(`INSERT INTO entities`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`INSERT INTO events`).WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(1)))
	mock.ExpectCommit()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.invoice.submit",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "clerk-1"},
		Data:        eventdom.Payload{"vendor_id": "v-1", "invoice_number": "INV-1", "amount": float64(500)},
	}, "intent-1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceApprove_HappyPath(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewInvoiceApprove(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(
		entityRow("invoice", "inv-1", "entity-1", `{"status":"matched","amount":500,"submitted_by":"clerk-1"}`, 1))
	mock.ExpectQuery(`FROM entities`).WillReturnRows(
		entityRow("invoice", "inv-1", "entity-1", `{"status":"matched","amount":500,"submitted_by":"clerk-1"}`, 1))
	mock.ExpectExec(`UPDATE entities`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO events`).WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(2)))
	mock.ExpectCommit()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.invoice.approve",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "approver-1"},
		Data:        eventdom.Payload{"invoice_id": "inv-1"},
	}, "intent-2")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceReject_PaidInvoiceIsRejectedWithoutMutation(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewInvoiceReject(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(
		entityRow("invoice", "inv-1", "entity-1", `{"status":"paid"}`, 2))
	mock.ExpectRollback()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.invoice.reject",
		LegalEntity: "entity-1",
		Data:        eventdom.Payload{"invoice_id": "inv-1", "reason": "duplicate"},
	}, "intent-3")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "paid")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestInvoiceSubmitThenPost_EmittedEventsCarryVendorID runs an invoice
// through the real submit and post handlers end to end and asserts the
// event rows they actually insert carry vendor_id, rather than asserting
// against a hand-built eventdom.Payload — a handler that forgot to copy
// vendor_id onto its own payload would pass a payload-literal test but
// fail this one.
func TestInvoiceSubmitThenPost_EmittedEventsCarryVendorID(t *testing.T) {
	deps, mock := testDeps(t)
	submit := NewInvoiceSubmit(NewBase(deps))
	post := NewInvoicePost(NewBase(deps))

	anyArgs := make([]driver.Value, 23)
	for i := range anyArgs {
		anyArgs[i] = sqlmock.AnyArg()
	}
	submitArgs := append([]driver.Value{}, anyArgs...)
	submitArgs[14] = eventDataHasVendorID{vendorID: "v-1"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(entityRow("vendor", "v-1", "entity-1", `{"name":"Acme Co"}`, 1))
	mock.ExpectExec(`INSERT INTO entities`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`INSERT INTO events`).WithArgs(submitArgs...).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(1)))
	mock.ExpectCommit()

	submitResult, err := submit.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.invoice.submit",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "clerk-1"},
		Data:        eventdom.Payload{"vendor_id": "v-1", "invoice_number": "INV-1", "amount": float64(500)},
	}, "intent-1")
	require.NoError(t, err)
	require.NotNil(t, submitResult)
	require.True(t, submitResult.Success)

	invoiceID := submitResult.Event.Data.String("invoice_id")
	require.NotEmpty(t, invoiceID)

	postArgs := append([]driver.Value{}, anyArgs...)
	postArgs[14] = eventDataHasVendorID{vendorID: "v-1"}

	invoiceAttrs := `{"status":"approved","amount":500,"vendor_id":"v-1"}`

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(entityRow("invoice", invoiceID, "entity-1", invoiceAttrs, 1))
	mock.ExpectQuery(`FROM entities`).WillReturnRows(entityRow("invoice", invoiceID, "entity-1", invoiceAttrs, 1))
	mock.ExpectExec(`UPDATE entities`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO events`).WithArgs(postArgs...).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(2)))
	mock.ExpectCommit()

	postResult, err := post.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.invoice.post",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "accountant-1"},
		Data:        eventdom.Payload{"invoice_id": invoiceID},
	}, "intent-2")
	require.NoError(t, err)
	require.NotNil(t, postResult)
	assert.True(t, postResult.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoicePost_HappyPathDefaultsGLEntries(t *testing.T) {
	deps, mock := testDeps(t)
	h := NewInvoicePost(NewBase(deps))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entities`).WillReturnRows(
		entityRow("invoice", "inv-1", "entity-1", `{"status":"approved","amount":500}`, 1))
	mock.ExpectQuery(`FROM entities`).WillReturnRows(
		entityRow("invoice", "inv-1", "entity-1", `{"status":"approved","amount":500}`, 1))
	mock.ExpectExec(`UPDATE entities`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO events`).WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(3)))
	mock.ExpectCommit()

	result, err := h.Execute(context.Background(), intentdom.Intent{
		Type:        "ap.invoice.post",
		LegalEntity: "entity-1",
		Actor:       eventdom.Actor{Type: "human", ID: "accountant-1"},
		Data:        eventdom.Payload{"invoice_id": "inv-1"},
	}, "intent-4")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

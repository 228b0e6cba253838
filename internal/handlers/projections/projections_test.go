package projections

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

func TestVendorList_Handle_UpsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vendor_list`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewVendorList()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"vendor_id": "v-1", "name": "Acme Co", "credit_limit": 1000.0},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorList_Reset_Truncates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`TRUNCATE TABLE vendor_list`).WillReturnResult(sqlmock.NewResult(0, 0))

	h := NewVendorList()

	require.NoError(t, h.Reset(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPAging_SubmittedInsertsOpenBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO ap_aging`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewAging()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Type:       "ap.invoice.submitted",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"invoice_id": "inv-1", "vendor_id": "v-1", "amount": 500.0, "due_date": "2026-09-01"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPAging_PaidClosesOpenRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE ap_aging SET open = false`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewAging()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Type:       "ap.invoice.paid",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"invoice_id": "inv-1"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemList_Handle_UpsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO item_list`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewItemList()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"item_id": "i-1", "name": "Widget", "sku": "SKU-1", "unit_price": 10.0},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPOList_Handle_UpsertsOpenRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO po_list`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewPOList()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"po_id": "po-1", "vendor_id": "v-1", "total": 500.0},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceList_SubmittedInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO ap_invoice_list`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewInvoiceList()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Type:       "ap.invoice.submitted",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"invoice_id": "inv-1", "vendor_id": "v-1", "invoice_number": "INV-1", "amount": 500.0},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceList_PostedAdvancesStatusOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO ap_invoice_list`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewInvoiceList()

	err = h.Handle(context.Background(), db, eventdom.Event{
		Type:       "ap.invoice.posted",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"invoice_id": "inv-1"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorBalance_PostedIncrementsBalanceWhenFirstApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO ap_vendor_balance_applied_events`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO ap_vendor_balance`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewVendorBalance()

	err = h.Handle(context.Background(), db, eventdom.Event{
		ID:         "evt-1",
		Type:       "ap.invoice.posted",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"vendor_id": "v-1", "amount": 500.0},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorBalance_ReplayedEventIsSkippedWithoutAdjustingBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO ap_vendor_balance_applied_events`).WillReturnResult(sqlmock.NewResult(0, 0))

	h := NewVendorBalance()

	err = h.Handle(context.Background(), db, eventdom.Event{
		ID:         "evt-1",
		Type:       "ap.invoice.posted",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data:       eventdom.Payload{"vendor_id": "v-1", "amount": 500.0},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGLPostings_PostedInsertsDebitAndCreditLines(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO gl_postings`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO gl_postings`).WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewGLPostings()

	err = h.Handle(context.Background(), db, eventdom.Event{
		ID:         "evt-1",
		Type:       "ap.invoice.posted",
		Scope:      eventdom.Scope{LegalEntity: "entity-1"},
		RecordedAt: time.Now().UTC(),
		Data: eventdom.Payload{
			"invoice_id": "inv-1",
			"gl_entries": []any{
				map[string]any{"account": "ap_control", "side": "credit", "amount": 500.0},
				map[string]any{"account": "expense", "side": "debit", "amount": 500.0},
			},
		},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

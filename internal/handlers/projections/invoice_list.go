package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// InvoiceList maintains one row per invoice, with status advanced by each
// lifecycle event — submitted, matched/match_exception, approved,
// rejected, posted, paid.
type InvoiceList struct{}

func NewInvoiceList() InvoiceList { return InvoiceList{} }

func (InvoiceList) ProjectionType() string { return "ap_invoice_list" }

func (InvoiceList) EventTypes() []string {
	return []string{
		"ap.invoice.submitted",
		"ap.invoice.matched",
		"ap.invoice.match_exception",
		"ap.invoice.approved",
		"ap.invoice.rejected",
		"ap.invoice.posted",
		"ap.invoice.paid",
	}
}

func (h InvoiceList) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	invoiceID := str(event.Data, "invoice_id")

	switch event.Type {
	case "ap.invoice.submitted":
		const query = `
			INSERT INTO ap_invoice_list (invoice_id, legal_entity, vendor_id, invoice_number, amount, po_id, status, due_date, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'submitted', $7, $8)
			ON CONFLICT (invoice_id, legal_entity) DO UPDATE SET
				vendor_id = EXCLUDED.vendor_id,
				invoice_number = EXCLUDED.invoice_number,
				amount = EXCLUDED.amount,
				po_id = EXCLUDED.po_id,
				updated_at = EXCLUDED.updated_at`

		return execCtx(ctx, q, query, invoiceID, event.Scope.LegalEntity, str(event.Data, "vendor_id"),
			str(event.Data, "invoice_number"), event.Data["amount"], str(event.Data, "po_id"), str(event.Data, "due_date"), event.RecordedAt)

	case "ap.invoice.matched":
		return h.setStatus(ctx, q, invoiceID, event, "matched")

	case "ap.invoice.match_exception":
		return h.setStatus(ctx, q, invoiceID, event, "match_exception")

	case "ap.invoice.approved":
		return h.setStatus(ctx, q, invoiceID, event, "approved")

	case "ap.invoice.rejected":
		return h.setStatus(ctx, q, invoiceID, event, "rejected")

	case "ap.invoice.posted":
		return h.setStatus(ctx, q, invoiceID, event, "posted")

	case "ap.invoice.paid":
		return h.setStatus(ctx, q, invoiceID, event, "paid")
	}

	return nil
}

// setStatus advances the status column idempotently: a replayed event
// reapplies the same status, which is a no-op under ON CONFLICT.
func (h InvoiceList) setStatus(ctx context.Context, q Querier, invoiceID string, event eventdom.Event, status string) error {
	const query = `
		INSERT INTO ap_invoice_list (invoice_id, legal_entity, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (invoice_id, legal_entity) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	return execCtx(ctx, q, query, invoiceID, event.Scope.LegalEntity, status, event.RecordedAt)
}

func (InvoiceList) Reset(ctx context.Context, q Querier) error {
	return execCtx(ctx, q, `TRUNCATE TABLE ap_invoice_list`)
}

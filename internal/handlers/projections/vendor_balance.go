package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// VendorBalance tracks each vendor's outstanding AP balance and open
// invoice count: both increment when an invoice posts and decrement when
// it pays or is rejected, never going below zero. Unlike the upsert-by-id
// projections, this one accumulates, so a replayed event must not be
// applied twice — guarded by a unique (event_id) marker row inserted in
// the same statement batch as the balance update.
type VendorBalance struct{}

func NewVendorBalance() VendorBalance { return VendorBalance{} }

func (VendorBalance) ProjectionType() string { return "ap_vendor_balance" }

func (VendorBalance) EventTypes() []string {
	return []string{"ap.invoice.posted", "ap.invoice.paid", "ap.invoice.rejected"}
}

func (h VendorBalance) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	applied, err := h.markApplied(ctx, q, event.ID)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	vendorID := str(event.Data, "vendor_id")
	amount := num(event.Data, "amount")

	switch event.Type {
	case "ap.invoice.posted":
		return h.adjust(ctx, q, vendorID, event.Scope.LegalEntity, amount, 1, event)
	case "ap.invoice.paid", "ap.invoice.rejected":
		return h.adjust(ctx, q, vendorID, event.Scope.LegalEntity, -amount, -1, event)
	}

	return nil
}

func (h VendorBalance) markApplied(ctx context.Context, q Querier, eventID string) (bool, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO ap_vendor_balance_applied_events (event_id) VALUES ($1) ON CONFLICT DO NOTHING`, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (h VendorBalance) adjust(ctx context.Context, q Querier, vendorID, legalEntity string, balanceDelta float64, countDelta int, event eventdom.Event) error {
	const query = `
		INSERT INTO ap_vendor_balance (vendor_id, legal_entity, balance, invoice_count, updated_at)
		VALUES ($1, $2, GREATEST(0, $3), GREATEST(0, $4), $5)
		ON CONFLICT (vendor_id, legal_entity) DO UPDATE SET
			balance = GREATEST(0, ap_vendor_balance.balance + $3),
			invoice_count = GREATEST(0, ap_vendor_balance.invoice_count + $4),
			updated_at = $5`

	return execCtx(ctx, q, query, vendorID, legalEntity, balanceDelta, countDelta, event.RecordedAt)
}

func (VendorBalance) Reset(ctx context.Context, q Querier) error {
	if err := execCtx(ctx, q, `TRUNCATE TABLE ap_vendor_balance`); err != nil {
		return err
	}
	return execCtx(ctx, q, `TRUNCATE TABLE ap_vendor_balance_applied_events`)
}

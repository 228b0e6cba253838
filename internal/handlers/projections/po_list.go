package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// POList supplements the canonical lifecycle with a purchase-order read
// model, upserted by id like vendor_list and item_list.
type POList struct{}

func NewPOList() POList { return POList{} }

func (POList) ProjectionType() string { return "po_list" }

func (POList) EventTypes() []string { return []string{"ap.po.created"} }

func (h POList) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	const query = `
		INSERT INTO po_list (po_id, legal_entity, vendor_id, total, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (po_id, legal_entity) DO UPDATE SET
			vendor_id = EXCLUDED.vendor_id,
			total = EXCLUDED.total,
			updated_at = EXCLUDED.updated_at`

	return execCtx(ctx, q, query, str(event.Data, "po_id"), event.Scope.LegalEntity,
		str(event.Data, "vendor_id"), event.Data["total"], "open", event.RecordedAt)
}

func (POList) Reset(ctx context.Context, q Querier) error {
	return execCtx(ctx, q, `TRUNCATE TABLE po_list`)
}

package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// VendorList maintains a straightforward upsert-by-id read model over
// vendor create/update events.
type VendorList struct{}

func NewVendorList() VendorList { return VendorList{} }

func (VendorList) ProjectionType() string { return "vendor_list" }

func (VendorList) EventTypes() []string {
	return []string{"mdm.vendor.created", "mdm.vendor.updated"}
}

func (h VendorList) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	vendorID := str(event.Data, "vendor_id")

	const query = `
		INSERT INTO vendor_list (vendor_id, legal_entity, name, credit_limit, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vendor_id, legal_entity) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), vendor_list.name),
			credit_limit = COALESCE(EXCLUDED.credit_limit, vendor_list.credit_limit),
			status = COALESCE(NULLIF(EXCLUDED.status, ''), vendor_list.status),
			updated_at = EXCLUDED.updated_at`

	var status string
	if s, ok := event.Data["status"].(string); ok {
		status = s
	}

	return execCtx(ctx, q, query, vendorID, event.Scope.LegalEntity, str(event.Data, "name"), event.Data["credit_limit"], status, event.RecordedAt)
}

func (VendorList) Reset(ctx context.Context, q Querier) error {
	return execCtx(ctx, q, `TRUNCATE TABLE vendor_list`)
}

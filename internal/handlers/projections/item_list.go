package projections

import (
	"context"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

// ItemList maintains a straightforward upsert-by-id read model over item
// create events.
type ItemList struct{}

func NewItemList() ItemList { return ItemList{} }

func (ItemList) ProjectionType() string { return "item_list" }

func (ItemList) EventTypes() []string { return []string{"mdm.item.created"} }

func (h ItemList) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	const query = `
		INSERT INTO item_list (item_id, legal_entity, name, sku, unit_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, legal_entity) DO UPDATE SET
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			unit_price = EXCLUDED.unit_price,
			updated_at = EXCLUDED.updated_at`

	return execCtx(ctx, q, query, str(event.Data, "item_id"), event.Scope.LegalEntity,
		str(event.Data, "name"), str(event.Data, "sku"), event.Data["unit_price"], event.RecordedAt)
}

func (ItemList) Reset(ctx context.Context, q Querier) error {
	return execCtx(ctx, q, `TRUNCATE TABLE item_list`)
}

package ap

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

// ItemCreate implements "item create": name required, SKU unique when
// present, SKU-less items are always allowed.
type ItemCreate struct{ Base }

func NewItemCreate(base Base) ItemCreate { return ItemCreate{base} }

func (h ItemCreate) IntentType() string { return "mdm.item.create" }

func (h ItemCreate) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "mdm.item.created", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	name := strings.TrimSpace(intent.Data.String("name"))
	if name == "" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "name: is required"}, nil
	}

	sku := strings.TrimSpace(intent.Data.String("sku"))

	skuExists := false

	if sku != "" {
		existing, err := h.Entities.GetEntityByTypeAndAttribute(ctx, tx, "item", "sku", sku, intent.LegalEntity)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		skuExists = existing != nil
	}

	ruleData := mergeMaps(intent.Data, map[string]any{"sku_exists": skuExists, "sku_present": sku != ""})

	decision := h.evaluate(h.IntentType(), ruleData, effectiveDateOf(intent))
	switch decision.Decision {
	case ruledom.DecisionReject:
		return h.rejectResult(tx, decision)
	case ruledom.DecisionRouteForApproval:
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	itemID := uuid.NewString()

	attrs := map[string]any{
		"name":        name,
		"sku":         sku,
		"unit_price":  intent.Data["unit_price"],
		"uom":         intent.Data["uom"],
		"status":      "active",
	}

	if _, err := h.Entities.CreateEntity(ctx, tx, "item", itemID, attrs, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "mdm.item.created", 1,
		eventdom.Payload{"item_id": itemID, "name": name, "sku": sku, "unit_price": intent.Data["unit_price"]},
		[]eventdom.EntityRef{{EntityType: "item", EntityID: itemID, Role: eventdom.RoleSubject}},
		decision, nil, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

package ap

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// POCreate implements "purchase order create": the vendor must exist;
// creates the PO entity and an ordered_from relationship to the vendor.
type POCreate struct{ Base }

func NewPOCreate(base Base) POCreate { return POCreate{base} }

func (h POCreate) IntentType() string { return "ap.po.create" }

func (h POCreate) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "ap.po.created", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	vendorID := intent.Data.String("vendor_id")

	vendor, err := h.Entities.GetEntity(ctx, tx, "vendor", vendorID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if vendor == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "vendor", EntityID: vendorID}
	}

	decision := h.evaluate(h.IntentType(), intent.Data, effectiveDateOf(intent))
	switch decision.Decision {
	case ruledom.DecisionReject:
		return h.rejectResult(tx, decision)
	case ruledom.DecisionRouteForApproval:
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	poID := uuid.NewString()

	attrs := map[string]any{
		"vendor_id": vendorID,
		"total":     intent.Data["total"],
		"currency":  intent.Data["currency"],
		"status":    "open",
	}

	if _, err := h.Entities.CreateEntity(ctx, tx, "purchase_order", poID, attrs, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if _, err := h.Entities.CreateRelationship(ctx, tx, "purchase_order", poID, "vendor", vendor.EntityID, "ordered_from", nil); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "ap.po.created", 1,
		eventdom.Payload{"po_id": poID, "vendor_id": vendorID, "total": intent.Data["total"]},
		[]eventdom.EntityRef{
			{EntityType: "purchase_order", EntityID: poID, Role: eventdom.RoleSubject},
			{EntityType: "vendor", EntityID: vendor.EntityID, Role: eventdom.RoleRelated},
		},
		decision, nil, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

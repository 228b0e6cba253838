package ap

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// VendorCreate implements "vendor create": rejects on empty name or a
// duplicate name within the legal entity, routes for approval when
// credit_limit exceeds the house limit.
type VendorCreate struct{ Base }

func NewVendorCreate(base Base) VendorCreate { return VendorCreate{base} }

func (h VendorCreate) IntentType() string { return "mdm.vendor.create" }

func (h VendorCreate) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "mdm.vendor.created", intent.IdempotencyKey); err != nil {
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

	existing, err := h.Entities.GetEntityByTypeAndAttribute(ctx, tx, "vendor", "name", name, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	ruleData := mergeMaps(intent.Data, map[string]any{"name_exists": existing != nil})

	decision := h.evaluate(h.IntentType(), ruleData, effectiveDateOf(intent))
	switch decision.Decision {
	case ruledom.DecisionReject:
		return h.rejectResult(tx, decision)
	case ruledom.DecisionRouteForApproval:
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	vendorID := uuid.NewString()

	attrs := map[string]any{
		"name":        name,
		"credit_limit": intent.Data["credit_limit"],
		"status":      "active",
	}

	if _, err := h.Entities.CreateEntity(ctx, tx, "vendor", vendorID, attrs, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "mdm.vendor.created", 1,
		eventdom.Payload{"vendor_id": vendorID, "name": name, "credit_limit": intent.Data["credit_limit"]},
		[]eventdom.EntityRef{{EntityType: "vendor", EntityID: vendorID, Role: eventdom.RoleSubject}},
		decision, nil, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// VendorUpdate implements "vendor update": requires expected_entity_version
// and raises a concurrency conflict on a stale value.
type VendorUpdate struct{ Base }

func NewVendorUpdate(base Base) VendorUpdate { return VendorUpdate{base} }

func (h VendorUpdate) IntentType() string { return "mdm.vendor.update" }

func (h VendorUpdate) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "mdm.vendor.updated", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	vendorID := strings.TrimSpace(intent.Data.String("vendor_id"))
	if vendorID == "" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "vendor_id: is required"}, nil
	}

	if intent.ExpectedEntityVersion == nil {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "expected_entity_version: is required"}, nil
	}

	vendor, err := h.Entities.GetEntity(ctx, tx, "vendor", vendorID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if vendor == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "vendor", EntityID: vendorID}
	}

	ruleData := mergeMaps(intent.Data, map[string]any{"current_version": vendor.Version})

	decision := h.evaluate(h.IntentType(), ruleData, effectiveDateOf(intent))
	switch decision.Decision {
	case ruledom.DecisionReject:
		return h.rejectResult(tx, decision)
	case ruledom.DecisionRouteForApproval:
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	newAttrs := make(map[string]any, len(vendor.Attributes))
	for k, v := range vendor.Attributes {
		newAttrs[k] = v
	}

	for _, field := range []string{"name", "credit_limit", "payment_terms", "status"} {
		if intent.Data.Has(field) {
			newAttrs[field] = intent.Data[field]
		}
	}

	if _, err := h.Entities.UpdateEntity(ctx, tx, "vendor", vendorID, newAttrs, *intent.ExpectedEntityVersion, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "mdm.vendor.updated", 1,
		eventdom.Payload(mergeMaps(intent.Data, map[string]any{"vendor_id": vendorID})),
		[]eventdom.EntityRef{{EntityType: "vendor", EntityID: vendorID, Role: eventdom.RoleSubject}},
		decision, intent.ExpectedEntityVersion, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// VendorAddContact creates a contact entity and a has_contact relationship
// from the vendor. Rejects on an empty contact name or missing vendor.
type VendorAddContact struct{ Base }

func NewVendorAddContact(base Base) VendorAddContact { return VendorAddContact{base} }

func (h VendorAddContact) IntentType() string { return "mdm.vendor.add_contact" }

func (h VendorAddContact) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "mdm.vendor.contact_added", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	vendorID := strings.TrimSpace(intent.Data.String("vendor_id"))
	contactName := strings.TrimSpace(intent.Data.String("name"))

	if contactName == "" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "name: is required"}, nil
	}

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

	contactID := uuid.NewString()

	contactAttrs := map[string]any{
		"name":  contactName,
		"email": intent.Data["email"],
		"phone": intent.Data["phone"],
	}

	if _, err := h.Entities.CreateEntity(ctx, tx, "contact", contactID, contactAttrs, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if _, err := h.Entities.CreateRelationship(ctx, tx, "vendor", vendor.EntityID, "contact", contactID, "has_contact", nil); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "mdm.vendor.contact_added", 1,
		eventdom.Payload{"vendor_id": vendor.EntityID, "contact_id": contactID, "name": contactName},
		[]eventdom.EntityRef{
			{EntityType: "contact", EntityID: contactID, Role: eventdom.RoleSubject},
			{EntityType: "vendor", EntityID: vendor.EntityID, Role: eventdom.RoleRelated},
		},
		decision, nil, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// VendorUpdateContact supplements the canonical lifecycle: mutates an
// existing contact's attributes under OCC.
type VendorUpdateContact struct{ Base }

func NewVendorUpdateContact(base Base) VendorUpdateContact { return VendorUpdateContact{base} }

func (h VendorUpdateContact) IntentType() string { return "mdm.vendor.update_contact" }

func (h VendorUpdateContact) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "mdm.vendor.contact_updated", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	contactID := strings.TrimSpace(intent.Data.String("contact_id"))
	if intent.ExpectedEntityVersion == nil {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "expected_entity_version: is required"}, nil
	}

	contact, err := h.Entities.GetEntity(ctx, tx, "contact", contactID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if contact == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "contact", EntityID: contactID}
	}

	decision := h.evaluate(h.IntentType(), intent.Data, effectiveDateOf(intent))
	if decision.Decision == ruledom.DecisionReject {
		return h.rejectResult(tx, decision)
	}

	if decision.Decision == ruledom.DecisionRouteForApproval {
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	newAttrs := make(map[string]any, len(contact.Attributes))
	for k, v := range contact.Attributes {
		newAttrs[k] = v
	}

	for _, field := range []string{"name", "email", "phone"} {
		if intent.Data.Has(field) {
			newAttrs[field] = intent.Data[field]
		}
	}

	if _, err := h.Entities.UpdateEntity(ctx, tx, "contact", contactID, newAttrs, *intent.ExpectedEntityVersion, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "mdm.vendor.contact_updated", 1,
		eventdom.Payload(mergeMaps(intent.Data, map[string]any{"contact_id": contactID})),
		[]eventdom.EntityRef{{EntityType: "contact", EntityID: contactID, Role: eventdom.RoleSubject}},
		decision, intent.ExpectedEntityVersion, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// VendorRemoveContact supplements the canonical lifecycle: marks a contact
// inactive rather than deleting the row, preserving the event's referential
// history.
type VendorRemoveContact struct{ Base }

func NewVendorRemoveContact(base Base) VendorRemoveContact { return VendorRemoveContact{base} }

func (h VendorRemoveContact) IntentType() string { return "mdm.vendor.remove_contact" }

func (h VendorRemoveContact) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "mdm.vendor.contact_removed", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	contactID := strings.TrimSpace(intent.Data.String("contact_id"))

	contact, err := h.Entities.GetEntity(ctx, tx, "contact", contactID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if contact == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "contact", EntityID: contactID}
	}

	decision := h.evaluate(h.IntentType(), intent.Data, effectiveDateOf(intent))
	if decision.Decision == ruledom.DecisionReject {
		return h.rejectResult(tx, decision)
	}

	newAttrs := make(map[string]any, len(contact.Attributes))
	for k, v := range contact.Attributes {
		newAttrs[k] = v
	}

	newAttrs["status"] = "inactive"

	if _, err := h.Entities.UpdateEntity(ctx, tx, "contact", contactID, newAttrs, contact.Version, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "mdm.vendor.contact_removed", 1,
		eventdom.Payload{"contact_id": contactID},
		[]eventdom.EntityRef{{EntityType: "contact", EntityID: contactID, Role: eventdom.RoleSubject}},
		decision, &contact.Version, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

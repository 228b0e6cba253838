package ap

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

const (
	defaultMatchTolerance = 0.01
	defaultExpenseAccount = "5000-00"
	apControlAccount      = "2100-00"
	cashAccount           = "1000-00"
)

// matchEngineActor is the system actor used for the auto-emitted
// matched/match_exception follow-on events §4.10 describes.
var matchEngineActor = eventdom.Actor{Type: eventdom.ActorSystem, ID: "match-engine", Name: "3-way match engine"}

// InvoiceSubmit implements "invoice submit": the vendor must exist. When
// po_id is supplied, a 3-way match is attempted and a follow-on matched or
// match_exception event is emitted in the same transaction. Rejects a
// duplicate (vendor_id, invoice_number) pair within the legal entity.
type InvoiceSubmit struct{ Base }

func NewInvoiceSubmit(base Base) InvoiceSubmit { return InvoiceSubmit{base} }

func (h InvoiceSubmit) IntentType() string { return "ap.invoice.submit" }

func (h InvoiceSubmit) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "ap.invoice.submitted", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	vendorID := intent.Data.String("vendor_id")
	invoiceNumber := strings.TrimSpace(intent.Data.String("invoice_number"))

	vendor, err := h.Entities.GetEntity(ctx, tx, "vendor", vendorID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if vendor == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "vendor", EntityID: vendorID}
	}

	duplicate := false

	if invoiceNumber != "" {
		candidate, err := h.Entities.GetEntityByTypeAndAttribute(ctx, tx, "invoice", "invoice_number", invoiceNumber, intent.LegalEntity)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		if candidate != nil && candidate.Attributes.String("vendor_id") == vendorID {
			duplicate = true
		}
	}

	poID := intent.Data.String("po_id")
	amount := intent.Data.Float64("amount")

	var (
		po        *eventdomPO
		variance  float64
		withinTol bool
	)

	if poID != "" {
		poEntity, err := h.Entities.GetEntity(ctx, tx, "purchase_order", poID, intent.LegalEntity)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		if poEntity == nil {
			_ = tx.Rollback()
			return nil, platform.EntityNotFoundError{EntityType: "purchase_order", EntityID: poID}
		}

		poTotal := poEntity.Attributes.Float64("total")
		tolerance := intent.Data.Float64("match_tolerance")

		if tolerance == 0 {
			tolerance = defaultMatchTolerance
		}

		if poTotal != 0 {
			variance = math.Abs(amount - poTotal)
			withinTol = variance/poTotal <= tolerance
		} else {
			variance = math.Abs(amount)
			withinTol = variance == 0
		}

		po = &eventdomPO{ID: poEntity.EntityID, Total: poTotal}
	}

	ruleData := mergeMaps(intent.Data, map[string]any{
		"duplicate_invoice": duplicate,
		"has_po":            poID != "",
		"within_tolerance":  withinTol,
		"variance":          variance,
	})

	decision := h.evaluate(h.IntentType(), ruleData, effectiveDateOf(intent))
	switch decision.Decision {
	case ruledom.DecisionReject:
		return h.rejectResult(tx, decision)
	case ruledom.DecisionRouteForApproval:
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	invoiceID := uuid.NewString()

	status := "submitted"
	if po != nil {
		if withinTol {
			status = "matched"
		} else {
			status = "match_exception"
		}
	}

	attrs := map[string]any{
		"vendor_id":      vendorID,
		"invoice_number": invoiceNumber,
		"amount":         amount,
		"po_id":          poID,
		"status":         status,
		"submitted_by":   intent.Actor.ID,
	}

	if _, err := h.Entities.CreateEntity(ctx, tx, "invoice", invoiceID, attrs, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	entities := []eventdom.EntityRef{{EntityType: "invoice", EntityID: invoiceID, Role: eventdom.RoleSubject}}
	if po != nil {
		entities = append(entities, eventdom.EntityRef{EntityType: "purchase_order", EntityID: po.ID, Role: eventdom.RoleRelated})
	}

	submitInput := h.newAppendInput(intent, intentID, "ap.invoice.submitted", 1,
		eventdom.Payload{"invoice_id": invoiceID, "vendor_id": vendorID, "invoice_number": invoiceNumber, "amount": amount, "po_id": poID},
		entities, decision, nil, nil)

	submitEvent, err := h.appendOneInTx(ctx, tx, submitInput)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if po != nil {
		followOn := h.buildMatchFollowOn(intent, intentID, invoiceID, po.ID, variance, withinTol, submitEvent.ID)

		if _, err := h.appendOneInTx(ctx, tx, followOn); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, platform.WrapInternal("commit intent execution", err)
	}

	return &intentdom.Result{
		Success: true,
		EventID: submitEvent.ID,
		Event:   submitEvent,
		Traces:  traces(decision.Traces),
		Status:  intentdom.StatusExecuted,
	}, nil
}

type eventdomPO struct {
	ID    string
	Total float64
}

// buildMatchFollowOn assembles the auto-matching follow-on event, caused
// by the submit event it runs immediately after in the same transaction.
func (h InvoiceSubmit) buildMatchFollowOn(intent intentdom.Intent, intentID, invoiceID, poID string, variance float64, withinTol bool, causedBy string) eventdom.AppendInput {
	eventType := "ap.invoice.matched"
	data := eventdom.Payload{"invoice_id": invoiceID, "po_id": poID, "variance": variance, "match_type": "3-way"}

	if !withinTol {
		eventType = "ap.invoice.match_exception"
		data["exception_type"] = "price_variance"
	}

	now := time.Now().UTC()

	return eventdom.AppendInput{
		Type:           eventType,
		SchemaVersion:  1,
		OccurredAt:     &now,
		EffectiveDate:  intent.EffectiveDate,
		Scope:          eventdom.Scope{Tenant: intent.LegalEntity, LegalEntity: intent.LegalEntity},
		Actor:          matchEngineActor,
		CorrelationID:  intent.CorrelationID,
		IntentID:       &intentID,
		Data:           data,
		Entities:       []eventdom.EntityRef{{EntityType: "invoice", EntityID: invoiceID, Role: eventdom.RoleSubject}},
		RulesEvaluated: nil,
		CausedBy:       &causedBy,
	}
}

// InvoiceApprove implements "invoice approve": status must be matched or
// submitted; enforces Segregation of Duties between submitter and
// approver before any rule-based routing.
type InvoiceApprove struct{ Base }

func NewInvoiceApprove(base Base) InvoiceApprove { return InvoiceApprove{base} }

func (h InvoiceApprove) IntentType() string { return "ap.invoice.approve" }

func (h InvoiceApprove) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "ap.invoice.approved", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	invoiceID := intent.Data.String("invoice_id")

	invoice, err := h.Entities.GetEntity(ctx, tx, "invoice", invoiceID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if invoice == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "invoice", EntityID: invoiceID}
	}

	status := invoice.Attributes.String("status")
	if status != "matched" && status != "submitted" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "invoice status must be matched or submitted to approve"}, nil
	}

	submitterIsApprover := invoice.Attributes.String("submitted_by") == intent.Actor.ID

	ruleData := mergeMaps(intent.Data, map[string]any{
		"_submitter_is_approver": submitterIsApprover,
		"amount":                 invoice.Attributes["amount"],
	})

	decision := h.evaluate(h.IntentType(), ruleData, effectiveDateOf(intent))
	switch decision.Decision {
	case ruledom.DecisionReject:
		return h.rejectResult(tx, decision)
	case ruledom.DecisionRouteForApproval:
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	newAttrs := cloneAttrs(invoice.Attributes)
	newAttrs["status"] = "approved"
	newAttrs["approved_by"] = intent.Actor.ID

	if _, err := h.Entities.UpdateEntity(ctx, tx, "invoice", invoiceID, newAttrs, invoice.Version, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "ap.invoice.approved", 1,
		eventdom.Payload{"invoice_id": invoiceID},
		[]eventdom.EntityRef{{EntityType: "invoice", EntityID: invoiceID, Role: eventdom.RoleSubject}},
		decision, &invoice.Version, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// InvoiceReject implements "invoice reject": disallowed on paid or
// cancelled invoices.
type InvoiceReject struct{ Base }

func NewInvoiceReject(base Base) InvoiceReject { return InvoiceReject{base} }

func (h InvoiceReject) IntentType() string { return "ap.invoice.reject" }

func (h InvoiceReject) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "ap.invoice.rejected", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	invoiceID := intent.Data.String("invoice_id")

	invoice, err := h.Entities.GetEntity(ctx, tx, "invoice", invoiceID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if invoice == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "invoice", EntityID: invoiceID}
	}

	status := invoice.Attributes.String("status")
	if status == "paid" || status == "cancelled" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "invoice cannot be rejected once paid or cancelled"}, nil
	}

	decision := h.evaluate(h.IntentType(), intent.Data, effectiveDateOf(intent))
	if decision.Decision == ruledom.DecisionReject {
		return h.rejectResult(tx, decision)
	}

	if decision.Decision == ruledom.DecisionRouteForApproval {
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	newAttrs := cloneAttrs(invoice.Attributes)
	newAttrs["status"] = "rejected"
	newAttrs["rejection_reason"] = intent.Data["reason"]

	if _, err := h.Entities.UpdateEntity(ctx, tx, "invoice", invoiceID, newAttrs, invoice.Version, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "ap.invoice.rejected", 1,
		eventdom.Payload{"invoice_id": invoiceID, "vendor_id": invoice.Attributes.String("vendor_id"), "reason": intent.Data["reason"]},
		[]eventdom.EntityRef{{EntityType: "invoice", EntityID: invoiceID, Role: eventdom.RoleSubject}},
		decision, &invoice.Version, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// InvoicePost implements "invoice post": requires approved status; appends
// gl_entries, either provided or defaulted to a two-leg debit/credit.
type InvoicePost struct{ Base }

func NewInvoicePost(base Base) InvoicePost { return InvoicePost{base} }

func (h InvoicePost) IntentType() string { return "ap.invoice.post" }

func (h InvoicePost) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "ap.invoice.posted", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	invoiceID := intent.Data.String("invoice_id")

	invoice, err := h.Entities.GetEntity(ctx, tx, "invoice", invoiceID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if invoice == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "invoice", EntityID: invoiceID}
	}

	if invoice.Attributes.String("status") != "approved" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "invoice must be approved to post"}, nil
	}

	decision := h.evaluate(h.IntentType(), intent.Data, effectiveDateOf(intent))
	if decision.Decision == ruledom.DecisionReject {
		return h.rejectResult(tx, decision)
	}

	if decision.Decision == ruledom.DecisionRouteForApproval {
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	amount := invoice.Attributes.Float64("amount")

	expenseAccount := strings.TrimSpace(intent.Data.String("expense_account"))
	if expenseAccount == "" {
		expenseAccount = defaultExpenseAccount
	}

	glEntries, _ := intent.Data["gl_entries"].([]any)
	if len(glEntries) == 0 {
		glEntries = []any{
			map[string]any{"account": expenseAccount, "side": "debit", "amount": amount},
			map[string]any{"account": apControlAccount, "side": "credit", "amount": amount},
		}
	}

	newAttrs := cloneAttrs(invoice.Attributes)
	newAttrs["status"] = "posted"

	if _, err := h.Entities.UpdateEntity(ctx, tx, "invoice", invoiceID, newAttrs, invoice.Version, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	input := h.newAppendInput(intent, intentID, "ap.invoice.posted", 1,
		eventdom.Payload{"invoice_id": invoiceID, "vendor_id": invoice.Attributes.String("vendor_id"), "amount": amount, "expense_account": expenseAccount, "gl_entries": glEntries},
		[]eventdom.EntityRef{{EntityType: "invoice", EntityID: invoiceID, Role: eventdom.RoleSubject}},
		decision, &invoice.Version, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

// InvoicePay implements "invoice pay": requires posted status; appends
// payment_reference and payment_date, transitions the entity to paid.
type InvoicePay struct{ Base }

func NewInvoicePay(base Base) InvoicePay { return InvoicePay{base} }

func (h InvoicePay) IntentType() string { return "ap.invoice.pay" }

func (h InvoicePay) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	tx, err := h.beginTx(ctx)
	if err != nil {
		return nil, err
	}

	if replay, err := h.idempotentReplay(ctx, tx, "ap.invoice.paid", intent.IdempotencyKey); err != nil {
		_ = tx.Rollback()
		return nil, err
	} else if replay != nil {
		_ = tx.Rollback()
		return replay, nil
	}

	invoiceID := intent.Data.String("invoice_id")

	invoice, err := h.Entities.GetEntity(ctx, tx, "invoice", invoiceID, intent.LegalEntity)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if invoice == nil {
		_ = tx.Rollback()
		return nil, platform.EntityNotFoundError{EntityType: "invoice", EntityID: invoiceID}
	}

	if invoice.Attributes.String("status") != "posted" {
		_ = tx.Rollback()
		return &intentdom.Result{Success: false, Error: "invoice must be posted to pay"}, nil
	}

	decision := h.evaluate(h.IntentType(), intent.Data, effectiveDateOf(intent))
	if decision.Decision == ruledom.DecisionReject {
		return h.rejectResult(tx, decision)
	}

	if decision.Decision == ruledom.DecisionRouteForApproval {
		return h.routeForApproval(ctx, tx, intent, intentID, decision)
	}

	amount := invoice.Attributes.Float64("amount")
	paymentReference := intent.Data.String("payment_reference")
	paymentDate := intent.Data.String("payment_date")

	newAttrs := cloneAttrs(invoice.Attributes)
	newAttrs["status"] = "paid"
	newAttrs["payment_reference"] = paymentReference
	newAttrs["payment_date"] = paymentDate

	if _, err := h.Entities.UpdateEntity(ctx, tx, "invoice", invoiceID, newAttrs, invoice.Version, intent.LegalEntity); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	glEntries := []any{
		map[string]any{"account": apControlAccount, "side": "debit", "amount": amount},
		map[string]any{"account": cashAccount, "side": "credit", "amount": amount},
	}

	input := h.newAppendInput(intent, intentID, "ap.invoice.paid", 1,
		eventdom.Payload{
			"invoice_id":        invoiceID,
			"vendor_id":         invoice.Attributes.String("vendor_id"),
			"amount":            amount,
			"payment_reference": paymentReference,
			"payment_date":      paymentDate,
			"gl_entries":        glEntries,
		},
		[]eventdom.EntityRef{{EntityType: "invoice", EntityID: invoiceID, Role: eventdom.RoleSubject}},
		decision, &invoice.Version, nil)

	return h.appendAndDispatch(ctx, tx, input, decision)
}

func cloneAttrs(attrs eventdom.Payload) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}

	return out
}

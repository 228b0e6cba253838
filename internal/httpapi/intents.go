package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/intentpipeline"
	"github.com/mcarvalho21/nova-sub000/internal/intentstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// IntentHandler serves the /intents family of endpoints: submission,
// retrieval, approve/reject, and deferred execution.
type IntentHandler struct {
	Pipeline *intentpipeline.Pipeline
	Intents  *intentstore.Store
	DB       *platform.PostgresConnection
}

type createIntentRequest struct {
	Type                  string          `json:"type"`
	Actor                 *ActorInput     `json:"actor"`
	LegalEntity           string          `json:"legal_entity"`
	Data                  map[string]any  `json:"data"`
	IdempotencyKey        *string         `json:"idempotency_key"`
	CorrelationID         string          `json:"correlation_id"`
	OccurredAt            *time.Time      `json:"occurred_at"`
	EffectiveDate         *string         `json:"effective_date"`
	ExpectedEntityVersion *int64          `json:"expected_entity_version"`
}

// Create handles POST /intents: assembles an Intent from the request body
// and the resolved actor, submits it to the pipeline, and maps the
// result to the status codes spec.md §6 specifies.
func (h IntentHandler) Create(c *fiber.Ctx) error {
	var req createIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, platform.ValidationError{Message: "malformed request body"})
	}

	if req.Type == "" {
		return WithError(c, platform.ValidationError{Field: "type", Message: "type is required"})
	}

	intent := intentdom.Intent{
		Type:                  req.Type,
		Actor:                 ActorFromRequest(c, req.Actor),
		LegalEntity:           LegalEntityFromRequest(c, req.LegalEntity),
		Data:                  eventdom.Payload(req.Data),
		IdempotencyKey:        req.IdempotencyKey,
		CorrelationID:         correlationIDOrFallback(req.CorrelationID, c),
		OccurredAt:            req.OccurredAt,
		EffectiveDate:         req.EffectiveDate,
		ExpectedEntityVersion: req.ExpectedEntityVersion,
	}

	result, err := h.Pipeline.Execute(c.UserContext(), intent)
	if err != nil {
		return WithError(c, err)
	}

	return respondIntentResult(c, fiber.StatusCreated, result)
}

func correlationIDOrFallback(bodyValue string, c *fiber.Ctx) string {
	if bodyValue != "" {
		return bodyValue
	}

	return CorrelationID(c)
}

// respondIntentResult renders an intent Result per §6/§7: pending-approval
// routes to 202, a rule-set or validation failure to 400, otherwise the
// caller's success status (201 on create, 200 on every other mutation).
func respondIntentResult(c *fiber.Ctx, successStatus int, result *intentdom.Result) error {
	if result.Status == intentdom.StatusPendingApproval {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"intent_id":              result.IntentID,
			"status":                 result.Status,
			"required_approver_role": result.RequiredApproverRole,
		})
	}

	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  result.Error,
			"traces": result.Traces,
		})
	}

	return c.Status(successStatus).JSON(fiber.Map{
		"intent_id": result.IntentID,
		"event_id":  result.EventID,
		"event":     result.Event,
		"status":    result.Status,
	})
}

// GetByID handles GET /intents/:id.
func (h IntentHandler) GetByID(c *fiber.Ctx) error {
	stored, err := h.Intents.GetByID(c.UserContext(), nil, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(stored)
}

type approveRejectRequest struct {
	Reason *string `json:"reason"`
}

// Approve handles POST /intents/:id/approve. Segregation of Duties is
// enforced inside intentstore.Store.Approve, which rejects when the
// approver id matches the originating actor.
func (h IntentHandler) Approve(c *fiber.Ctx) error {
	var req approveRejectRequest
	_ = c.BodyParser(&req)

	actor := ActorFromRequest(c, nil)

	stored, err := h.Intents.Approve(c.UserContext(), nil, c.Params("id"), actor.ID, actor.Name, req.Reason)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{
		"intent_id":      stored.ID,
		"status":         stored.Status,
		"approved_by_id": actor.ID,
	})
}

// Reject handles POST /intents/:id/reject.
func (h IntentHandler) Reject(c *fiber.Ctx) error {
	var req approveRejectRequest
	_ = c.BodyParser(&req)

	actor := ActorFromRequest(c, nil)

	stored, err := h.Intents.Reject(c.UserContext(), nil, c.Params("id"), actor.ID, actor.Name, req.Reason)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{
		"intent_id":      stored.ID,
		"status":         stored.Status,
		"rejected_by_id": actor.ID,
	})
}

// Execute handles POST /intents/:id/execute: re-submits an approved
// pending intent to its registered handler and records the outcome.
func (h IntentHandler) Execute(c *fiber.Ctx) error {
	stored, err := h.Intents.GetByID(c.UserContext(), nil, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	if stored.Status != intentdom.StatusApproved {
		return WithError(c, platform.ValidationError{Message: "intent must be approved before it can be executed"})
	}

	intent := intentstore.ToIntent(stored)
	intent.ID = stored.ID

	result, err := h.Pipeline.Execute(c.UserContext(), intent)
	if err != nil {
		_ = h.Intents.MarkFailed(c.UserContext(), nil, stored.ID, err.Error())
		return WithError(c, err)
	}

	if !result.Success {
		_ = h.Intents.MarkFailed(c.UserContext(), nil, stored.ID, result.Error)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": result.Error, "traces": result.Traces})
	}

	if err := h.Intents.MarkExecuted(c.UserContext(), nil, stored.ID, result.EventID); err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"intent_id": stored.ID, "status": intentdom.StatusExecuted})
}

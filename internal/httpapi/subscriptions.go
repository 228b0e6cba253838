package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/subscriptionsvc"
)

// SubscriptionHandler serves CRUD and lifecycle operations on projection
// subscriptions.
type SubscriptionHandler struct {
	Subscriptions *subscriptionsvc.Service
}

type createSubscriptionRequest struct {
	ProjectionType string   `json:"projection_type"`
	SubscriberType string   `json:"subscriber_type"`
	SubscriberID   string   `json:"subscriber_id"`
	EventTypes     []string `json:"event_types"`
	BatchSize      int      `json:"batch_size"`
}

// Create handles POST /subscriptions.
func (h SubscriptionHandler) Create(c *fiber.Ctx) error {
	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, platform.ValidationError{Message: "malformed request body"})
	}

	if req.ProjectionType == "" {
		return WithError(c, platform.ValidationError{Field: "projection_type", Message: "projection_type is required"})
	}

	sub, err := h.Subscriptions.Create(c.UserContext(), nil, projectiondom.Subscription{
		ProjectionType: req.ProjectionType,
		SubscriberType: req.SubscriberType,
		SubscriberID:   req.SubscriberID,
		EventTypes:     req.EventTypes,
		BatchSize:      req.BatchSize,
	})
	if err != nil {
		return WithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetByID handles GET /subscriptions/:id.
func (h SubscriptionHandler) GetByID(c *fiber.Ctx) error {
	sub, err := h.Subscriptions.GetByID(c.UserContext(), nil, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(sub)
}

// List handles GET /subscriptions?projection_type=....
func (h SubscriptionHandler) List(c *fiber.Ctx) error {
	subs, err := h.Subscriptions.ListByProjectionType(c.UserContext(), nil, c.Query("projection_type"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(subs)
}

// Pause handles POST /subscriptions/:id/pause.
func (h SubscriptionHandler) Pause(c *fiber.Ctx) error {
	sub, err := h.Subscriptions.Pause(c.UserContext(), nil, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	if sub == nil {
		return WithError(c, platform.EntityNotFoundError{EntityType: "subscription", EntityID: c.Params("id")})
	}

	return c.JSON(sub)
}

// Resume handles POST /subscriptions/:id/resume.
func (h SubscriptionHandler) Resume(c *fiber.Ctx) error {
	sub, err := h.Subscriptions.Resume(c.UserContext(), nil, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	if sub == nil {
		return WithError(c, platform.EntityNotFoundError{EntityType: "subscription", EntityID: c.Params("id")})
	}

	return c.JSON(sub)
}

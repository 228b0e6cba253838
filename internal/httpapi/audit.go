package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// AuditHandler serves read-only access to the append-only event log.
type AuditHandler struct {
	Events *eventstore.Store
}

// GetByID handles GET /audit/events/:id.
func (h AuditHandler) GetByID(c *fiber.Ctx) error {
	event, err := h.Events.GetByID(c.UserContext(), nil, c.Params("id"))
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(event)
}

// List handles GET /audit/events?after_sequence&limit.
func (h AuditHandler) List(c *fiber.Ctx) error {
	afterSequence := int64(parseIntQuery(c, "after_sequence", 0))
	limit := parseIntQuery(c, "limit", 100)

	page, err := h.Events.ReadStream(c.UserContext(), nil, eventstore.ReadStreamParams{
		AfterSequence: afterSequence,
		Limit:         limit,
	})
	if err != nil {
		return WithError(c, platform.WrapInternal("read event stream", err))
	}

	return c.JSON(fiber.Map{
		"events":        page.Events,
		"has_more":      page.HasMore,
		"next_sequence": page.NextSequence,
	})
}

package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/registry"
)

// EventTypeHandler serves the event type registry's schema
// register/list/get operations.
type EventTypeHandler struct {
	Registry *registry.Registry
}

type registerSchemaRequest struct {
	TypeName      string `json:"type_name"`
	SchemaVersion int    `json:"schema_version"`
	JSONSchema    string `json:"json_schema"`
	Description   string `json:"description"`
}

// Register handles POST /event-types.
func (h EventTypeHandler) Register(c *fiber.Ctx) error {
	var req registerSchemaRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, platform.ValidationError{Message: "malformed request body"})
	}

	if req.TypeName == "" || req.SchemaVersion == 0 {
		return WithError(c, platform.ValidationError{Message: "type_name and schema_version are required"})
	}

	entry := registry.SchemaEntry{
		TypeName:      req.TypeName,
		SchemaVersion: req.SchemaVersion,
		JSONSchema:    req.JSONSchema,
		Description:   req.Description,
	}

	if err := h.Registry.Register(c.UserContext(), entry); err != nil {
		return WithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// List handles GET /event-types.
func (h EventTypeHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.Registry.ListTypes())
}

// GetByName handles GET /event-types/:name.
func (h EventTypeHandler) GetByName(c *fiber.Ctx) error {
	versions := h.Registry.ListVersions(c.Params("name"))
	if len(versions) == 0 {
		return WithError(c, platform.EntityNotFoundError{EntityType: "event_type", EntityID: c.Params("name")})
	}

	entries := make([]registry.SchemaEntry, 0, len(versions))

	for _, v := range versions {
		if entry, ok := h.Registry.GetSchema(c.Params("name"), v); ok {
			entries = append(entries, entry)
		}
	}

	return c.JSON(entries)
}

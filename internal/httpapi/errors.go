package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// errorBody is the uniform client-error envelope, shaped after
// common/net/http's ResponseError.
type errorBody struct {
	Message string              `json:"message"`
	Traces  []platform.RuleTrace `json:"traces,omitempty"`
}

// WithError maps a typed engine error to the status codes and bodies
// spec.md §6/§7 specify. Anything not in the typed error catalog is
// logged and surfaced as 500, never leaking internal detail to the
// client.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case platform.EntityNotFoundError:
		return c.Status(fiber.StatusNotFound).JSON(errorBody{Message: e.Error()})
	case platform.ValidationError:
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Message: e.Error()})
	case platform.EntityConflictError:
		return c.Status(fiber.StatusConflict).JSON(errorBody{Message: e.Error()})
	case platform.RuleRejectedError:
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Message: e.Message, Traces: e.Traces})
	case platform.ApprovalRoutedError:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"required_approver_role": e.RequiredApproverRole,
			"traces":                 e.Traces,
		})
	case platform.ConcurrencyConflictError:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":         e.Error(),
			"entity_type":     e.EntityType,
			"entity_id":       e.EntityID,
			"expected_version": e.Expected,
			"actual_version":   e.Actual,
		})
	case platform.UnauthorizedError:
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody{Message: e.Message})
	case platform.ForbiddenError:
		return c.Status(fiber.StatusForbidden).JSON(errorBody{Message: e.Message})
	case platform.InternalError:
		RequestLogger(c).Errorf("internal error [%s]: %v", CorrelationID(c), e)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Message: "internal error"})
	default:
		RequestLogger(c).Errorf("unhandled error [%s]: %v", CorrelationID(c), err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Message: "internal error"})
	}
}

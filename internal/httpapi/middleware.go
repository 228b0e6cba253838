// Package httpapi implements the REST surface spec.md §6 describes: a
// thin fiber layer over the intent pipeline, projection tables, audit
// log, subscriptions, and event type registry. It carries no business
// logic of its own — every handler decodes a request, calls a collaborator,
// and maps the result to a status code.
package httpapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

const headerCorrelationID = "X-Correlation-ID"

// WithCorrelationID assigns a correlation id to every request that didn't
// carry one, mirroring the teacher's withCorrelationID middleware.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := c.Get(headerCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}

		c.Set(headerCorrelationID, cid)
		c.Locals(headerCorrelationID, cid)

		return c.Next()
	}
}

// CorrelationID reads the id WithCorrelationID attached to this request.
func CorrelationID(c *fiber.Ctx) string {
	if v, ok := c.Locals(headerCorrelationID).(string); ok {
		return v
	}

	return ""
}

// WithLogging attaches a request-scoped Logger to the fiber context and
// logs completion at info level, mirroring the teacher's withLogging
// middleware shape but over this engine's own Logger interface.
func WithLogging(base platform.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		logger := base.WithFields("correlation_id", CorrelationID(c), "method", c.Method(), "path", c.Path())
		c.Locals("logger", logger)

		err := c.Next()

		logger.Infof("request completed in %s with status %d", time.Since(start), c.Response().StatusCode())

		return err
	}
}

// RequestLogger reads the Logger WithLogging attached to this request.
func RequestLogger(c *fiber.Ctx) platform.Logger {
	if v, ok := c.Locals("logger").(platform.Logger); ok {
		return v
	}

	return &platform.NoneLogger{}
}

// WithActor resolves the authenticated identity spec.md §6 describes: if
// signingKey is configured and the request carries a valid bearer token,
// its claims populate the actor; otherwise no actor is set here and
// ActorFromRequest falls back to whatever actor the request body supplies.
func WithActor(signingKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(signingKey) == "" {
			return c.Next()
		}

		raw := c.Get(fiber.HeaderAuthorization)

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Next()
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
			return []byte(signingKey), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return c.Next()
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Next()
		}

		actor := &platform.Actor{
			Type:        stringClaim(claims, "actor_type"),
			ID:          stringClaim(claims, "id"),
			Name:        stringClaim(claims, "name"),
			LegalEntity: stringClaim(claims, "legal_entity"),
		}

		if caps, ok := claims["capabilities"].([]any); ok {
			for _, v := range caps {
				if s, ok := v.(string); ok {
					actor.Capabilities = append(actor.Capabilities, s)
				}
			}
		}

		c.Locals("actor", actor)
		c.SetUserContext(platform.ContextWithActor(c.UserContext(), actor))

		return c.Next()
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}

	return ""
}

// ActorFromRequest resolves the authenticated actor set by WithActor, or
// builds one from the request body's actor field when the transport
// injected none — spec.md §6's fallback rule.
func ActorFromRequest(c *fiber.Ctx, bodyActor *ActorInput) eventdom.Actor {
	if actor, ok := c.Locals("actor").(*platform.Actor); ok && actor != nil {
		return eventdom.Actor{Type: eventdom.ActorType(actor.Type), ID: actor.ID, Name: actor.Name}
	}

	if bodyActor != nil {
		return eventdom.Actor{Type: eventdom.ActorType(bodyActor.Type), ID: bodyActor.ID, Name: bodyActor.Name}
	}

	return eventdom.Actor{}
}

// LegalEntityFromRequest mirrors ActorFromRequest for the legal_entity
// scope: the authenticated identity wins when present.
func LegalEntityFromRequest(c *fiber.Ctx, bodyLegalEntity string) string {
	if actor, ok := c.Locals("actor").(*platform.Actor); ok && actor != nil && actor.LegalEntity != "" {
		return actor.LegalEntity
	}

	return bodyLegalEntity
}

// ActorInput is the wire shape of an intent's optional inline actor.
type ActorInput struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

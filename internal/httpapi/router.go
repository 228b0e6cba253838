package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Handlers bundles every route handler NewRouter wires — grouped the way
// the teacher's bootstrap/http/routes.go takes one struct per resource.
type Handlers struct {
	Intents       IntentHandler
	Projections   ProjectionHandler
	Audit         AuditHandler
	Subscriptions SubscriptionHandler
	EventTypes    EventTypeHandler
}

// NewRouter assembles the fiber app and registers every route spec.md §6
// names, mirroring the teacher's NewRouter(lg, tl, ...) shape.
func NewRouter(logger platform.Logger, jwtSigningKey string, h Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(WithCorrelationID())
	app.Use(WithLogging(logger))
	app.Use(WithActor(jwtSigningKey))

	app.Post("/intents", h.Intents.Create)
	app.Get("/intents/:id", h.Intents.GetByID)
	app.Post("/intents/:id/approve", h.Intents.Approve)
	app.Post("/intents/:id/reject", h.Intents.Reject)
	app.Post("/intents/:id/execute", h.Intents.Execute)

	app.Get("/projections/:name", h.Projections.Rows)
	app.Post("/projections/:type/rebuild", h.Projections.Rebuild)
	app.Post("/projections/:type/snapshot", h.Projections.Snapshot)

	app.Get("/audit/events", h.Audit.List)
	app.Get("/audit/events/:id", h.Audit.GetByID)

	app.Post("/subscriptions", h.Subscriptions.Create)
	app.Get("/subscriptions", h.Subscriptions.List)
	app.Get("/subscriptions/:id", h.Subscriptions.GetByID)
	app.Post("/subscriptions/:id/pause", h.Subscriptions.Pause)
	app.Post("/subscriptions/:id/resume", h.Subscriptions.Resume)

	app.Post("/event-types", h.EventTypes.Register)
	app.Get("/event-types", h.EventTypes.List)
	app.Get("/event-types/:name", h.EventTypes.GetByName)

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("healthy") })
	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "apengine", "request_date": time.Now().UTC()})
	})

	return app
}

package httpapi

import (
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/gofiber/fiber/v2"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/projectionengine"
	"github.com/mcarvalho21/nova-sub000/internal/snapshotsvc"
)

// ProjectionHandler serves read access to projection tables plus the
// rebuild and snapshot administrative operations.
type ProjectionHandler struct {
	DB        *platform.PostgresConnection
	Registry  *projectionengine.Registry
	Rebuilder *projectionengine.Rebuilder
	Snapshots *snapshotsvc.Service
	// SubscriptionIDs resolves the subscription id a rebuild should reset,
	// keyed by projection type — every projection carries exactly one
	// rebuild-driving subscription, registered at bootstrap.
	SubscriptionIDs map[string]string
}

// tableFor maps a projection type to its backing table. Only projection
// types present here (and in the handler registry) are queryable —
// spec.md §6 exposes "projections/{name}" generically, but the table
// name itself must never come from unvalidated user input.
var tableFor = map[string]string{
	"vendor_list":       "vendor_list",
	"item_list":         "item_list",
	"po_list":           "po_list",
	"ap_invoice_list":   "ap_invoice_list",
	"ap_aging":          "ap_aging",
	"ap_vendor_balance": "ap_vendor_balance",
	"gl_postings":       "gl_postings",
}

// Rows handles GET /projections/:name.
func (h ProjectionHandler) Rows(c *fiber.Ctx) error {
	name := c.Params("name")

	table, ok := tableFor[name]
	if !ok || len(h.Registry.HandlersForProjection(name)) == 0 {
		return WithError(c, platform.EntityNotFoundError{EntityType: "projection", EntityID: name})
	}

	db, err := h.DB.GetDB(c.UserContext())
	if err != nil {
		return WithError(c, platform.WrapInternal("get database connection", err))
	}

	query, args, err := squirrel.Select("*").From(table).PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return WithError(c, platform.WrapInternal("build projection query", err))
	}

	rows, err := db.QueryContext(c.UserContext(), query, args...)
	if err != nil {
		return WithError(c, platform.WrapInternal("query projection rows", err))
	}
	defer rows.Close()

	out, err := platform.ScanRowsToMaps(rows)
	if err != nil {
		return WithError(c, platform.WrapInternal("scan projection rows", err))
	}

	return c.JSON(out)
}

// Rebuild handles POST /projections/:type/rebuild.
func (h ProjectionHandler) Rebuild(c *fiber.Ctx) error {
	projType := c.Params("type")

	subID, ok := h.SubscriptionIDs[projType]
	if !ok {
		return WithError(c, platform.EntityNotFoundError{EntityType: "projection", EntityID: projType})
	}

	var req struct {
		BatchSize int `json:"batch_size"`
	}
	_ = c.BodyParser(&req)

	result, err := h.Rebuilder.Rebuild(c.UserContext(), projType, subID, req.BatchSize)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(result)
}

// Snapshot handles POST /projections/:type/snapshot.
func (h ProjectionHandler) Snapshot(c *fiber.Ctx) error {
	snap, err := h.Snapshots.CreateSnapshot(c.UserContext(), c.Params("type"))
	if err != nil {
		return WithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(snap)
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return n
}

package projectionengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/eventdom"
)

type stubProjHandler struct {
	projType   string
	eventTypes []string
}

func (h stubProjHandler) ProjectionType() string   { return h.projType }
func (h stubProjHandler) EventTypes() []string     { return h.eventTypes }
func (h stubProjHandler) Handle(ctx context.Context, q Querier, event eventdom.Event) error {
	return nil
}

func TestRegistry_HandlersForReturnsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	first := stubProjHandler{projType: "vendor_list", eventTypes: []string{"mdm.vendor.created"}}
	second := stubProjHandler{projType: "ap_aging", eventTypes: []string{"mdm.vendor.created"}}

	r.Register(first)
	r.Register(second)

	handlers := r.HandlersFor("mdm.vendor.created")
	require.Len(t, handlers, 2)
	assert.Equal(t, "vendor_list", handlers[0].ProjectionType())
	assert.Equal(t, "ap_aging", handlers[1].ProjectionType())
}

func TestRegistry_EventTypesForProjectionDeduplicates(t *testing.T) {
	r := NewRegistry()
	r.Register(stubProjHandler{projType: "ap_invoice_list", eventTypes: []string{"ap.invoice.submitted", "ap.invoice.posted"}})
	r.Register(stubProjHandler{projType: "ap_invoice_list", eventTypes: []string{"ap.invoice.posted", "ap.invoice.paid"}})

	types := r.EventTypesForProjection("ap_invoice_list")

	assert.ElementsMatch(t, []string{"ap.invoice.submitted", "ap.invoice.posted", "ap.invoice.paid"}, types)
}

func TestRegistry_ProjectionTypesListsEveryDistinctType(t *testing.T) {
	r := NewRegistry()
	r.Register(stubProjHandler{projType: "vendor_list"})
	r.Register(stubProjHandler{projType: "item_list"})

	assert.ElementsMatch(t, []string{"vendor_list", "item_list"}, r.ProjectionTypes())
}

func TestRegistry_HandlersForUnknownEventTypeIsEmpty(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.HandlersFor("no.such.event"))
}

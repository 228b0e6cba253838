package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/registry"
)

func TestEventTypeHandler_Register_MissingFieldsIsBadRequest(t *testing.T) {
	h := EventTypeHandler{Registry: registry.New()}

	app := fiber.New()
	app.Post("/event-types", h.Register)

	resp, err := app.Test(httptest.NewRequest("POST", "/event-types", bytes.NewBufferString(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEventTypeHandler_RegisterThenGetByName(t *testing.T) {
	h := EventTypeHandler{Registry: registry.New()}

	app := fiber.New()
	app.Post("/event-types", h.Register)
	app.Get("/event-types/:name", h.GetByName)

	body, _ := json.Marshal(map[string]any{
		"type_name": "mdm.vendor.created", "schema_version": 1,
		"json_schema": `{"type":"object"}`,
	})
	registerResp, err := app.Test(httptest.NewRequest("POST", "/event-types", bytes.NewBuffer(body)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, registerResp.StatusCode)

	getResp, err := app.Test(httptest.NewRequest("GET", "/event-types/mdm.vendor.created", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, getResp.StatusCode)
}

func TestEventTypeHandler_GetByName_UnknownTypeIs404(t *testing.T) {
	h := EventTypeHandler{Registry: registry.New()}

	app := fiber.New()
	app.Get("/event-types/:name", h.GetByName)

	resp, err := app.Test(httptest.NewRequest("GET", "/event-types/no.such.type", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

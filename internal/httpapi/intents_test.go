package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/intentpipeline"
)

type stubIntentHandler struct {
	intentType string
	result     *intentdom.Result
	err        error
}

func (h stubIntentHandler) IntentType() string { return h.intentType }

func (h stubIntentHandler) Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error) {
	return h.result, h.err
}

func newTestApp(handler IntentHandler) *fiber.App {
	app := fiber.New()
	app.Post("/intents", handler.Create)

	return app
}

func TestIntentHandler_Create_MissingTypeIsBadRequest(t *testing.T) {
	pipeline := intentpipeline.New(nil)
	app := newTestApp(IntentHandler{Pipeline: pipeline})

	req := httptest.NewRequest("POST", "/intents", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestIntentHandler_Create_SuccessReturns201(t *testing.T) {
	pipeline := intentpipeline.New(nil)
	pipeline.Register(stubIntentHandler{
		intentType: "mdm.vendor.create",
		result:     &intentdom.Result{Success: true, EventID: "evt-1", Status: intentdom.StatusExecuted},
	})

	app := newTestApp(IntentHandler{Pipeline: pipeline})

	body, _ := json.Marshal(map[string]any{
		"type": "mdm.vendor.create",
		"data": map[string]any{"name": "Acme Co"},
	})

	req := httptest.NewRequest("POST", "/intents", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "evt-1", out["event_id"])
}

func TestIntentHandler_Create_PendingApprovalReturns202(t *testing.T) {
	pipeline := intentpipeline.New(nil)
	pipeline.Register(stubIntentHandler{
		intentType: "ap.invoice.pay",
		result: &intentdom.Result{
			Success: false, Status: intentdom.StatusPendingApproval, RequiredApproverRole: "ap_manager",
		},
	})

	app := newTestApp(IntentHandler{Pipeline: pipeline})

	body, _ := json.Marshal(map[string]any{"type": "ap.invoice.pay"})
	req := httptest.NewRequest("POST", "/intents", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "ap_manager", out["required_approver_role"])
}

func TestIntentHandler_Create_RuleRejectionReturns400(t *testing.T) {
	pipeline := intentpipeline.New(nil)
	pipeline.Register(stubIntentHandler{
		intentType: "ap.invoice.submit",
		result:     &intentdom.Result{Success: false, Error: "amount exceeds limit"},
	})

	app := newTestApp(IntentHandler{Pipeline: pipeline})

	body, _ := json.Marshal(map[string]any{"type": "ap.invoice.submit"})
	req := httptest.NewRequest("POST", "/intents", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "amount exceeds limit", out["error"])
}

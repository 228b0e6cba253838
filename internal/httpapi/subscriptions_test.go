package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
	"github.com/mcarvalho21/nova-sub000/internal/subscriptionsvc"
)

func newSubscriptionService(t *testing.T) (*subscriptionsvc.Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))

	return subscriptionsvc.New(&platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}), mock
}

func TestSubscriptionHandler_Create_MissingProjectionTypeIsBadRequest(t *testing.T) {
	svc, _ := newSubscriptionService(t)
	h := SubscriptionHandler{Subscriptions: svc}

	app := fiber.New()
	app.Post("/subscriptions", h.Create)

	req := httptest.NewRequest("POST", "/subscriptions", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubscriptionHandler_Create_Success(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	h := SubscriptionHandler{Subscriptions: svc}

	mock.ExpectExec(`INSERT INTO event_subscriptions`).WillReturnResult(sqlmock.NewResult(0, 1))

	app := fiber.New()
	app.Post("/subscriptions", h.Create)

	body, _ := json.Marshal(map[string]any{
		"projection_type": "vendor_list", "subscriber_type": "projection", "subscriber_id": "worker-1",
	})
	req := httptest.NewRequest("POST", "/subscriptions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionHandler_Pause_NotFoundReturns404(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	h := SubscriptionHandler{Subscriptions: svc}

	mock.ExpectExec(`UPDATE event_subscriptions SET status = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))

	app := fiber.New()
	app.Post("/subscriptions/:id/pause", h.Pause)

	resp, err := app.Test(httptest.NewRequest("POST", "/subscriptions/sub-1/pause", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

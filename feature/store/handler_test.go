package store_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"stocklink/core/database"
	"stocklink/core/middleware/tenant"
	"stocklink/feature/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	name := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: name})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.Store{}, &store.SyncState{}))

	app := fiber.New()
	app.Use(tenant.New())
	require.NoError(t, store.NewFeature(db, zap.NewNop()).Load(app))
	return app
}

func TestStoreHandlers(t *testing.T) {
	app := setupApp(t)
	tenantID := uuid.NewString()

	t.Run("MissingTenantHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stores/", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	var createdID string
	t.Run("Create", func(t *testing.T) {
		body := `{"channel":"bricklink","name":"My BL Shop","settings":{"token":"abc"}}`
		req := httptest.NewRequest("POST", "/stores/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(tenant.HeaderName, tenantID)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var created store.Store
		raw, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(raw, &created))
		assert.Equal(t, "bricklink", created.Channel)
		assert.True(t, created.IsEnabled)
		createdID = created.ID.String()
	})

	t.Run("CreateValidation", func(t *testing.T) {
		body := `{"channel":"bricklink"}`
		req := httptest.NewRequest("POST", "/stores/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(tenant.HeaderName, tenantID)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("List", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stores/", nil)
		req.Header.Set(tenant.HeaderName, tenantID)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var stores []store.Store
		raw, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(raw, &stores))
		assert.Len(t, stores, 1)
	})

	t.Run("ListScopedToTenant", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stores/", nil)
		req.Header.Set(tenant.HeaderName, uuid.NewString())

		resp, err := app.Test(req)
		require.NoError(t, err)

		var stores []store.Store
		raw, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(raw, &stores))
		assert.Empty(t, stores)
	})

	t.Run("Get", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stores/"+createdID, nil)
		req.Header.Set(tenant.HeaderName, tenantID)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stores/"+uuid.NewString(), nil)
		req.Header.Set(tenant.HeaderName, tenantID)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

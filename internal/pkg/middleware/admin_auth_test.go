package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin/api/ping", AdminAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAdminAuthMiddleware(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "super-secret")
	app := newAdminTestApp()

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"Missing key", "", "", fiber.StatusUnauthorized},
		{"Wrong key", "X-API-Key", "guess", fiber.StatusUnauthorized},
		{"Valid via X-API-Key", "X-API-Key", "super-secret", fiber.StatusNoContent},
		{"Valid via bearer token", "Authorization", "Bearer super-secret", fiber.StatusNoContent},
		{"Bearer with wrong key", "Authorization", "Bearer guess", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/api/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestAdminAuthMiddlewareUnconfigured(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "")
	app := newAdminTestApp()

	req := httptest.NewRequest(http.MethodGet, "/admin/api/ping", nil)
	req.Header.Set("X-API-Key", "anything")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

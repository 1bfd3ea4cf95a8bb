package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
)

// AdminAuthMiddleware authenticates requests against the operator API key
// configured in ADMIN_API_KEY. The portal has no end-user accounts, so this
// single key guards every administrative endpoint.
func AdminAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		configured := strings.TrimSpace(env.GetEnv("ADMIN_API_KEY", ""))
		if configured == "" {
			log.Warn("[AdminAuth] ADMIN_API_KEY is not configured, rejecting request")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Admin API is not configured"})
		}

		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		// Compare digests so key length never leaks through timing.
		want := sha256.Sum256([]byte(configured))
		got := sha256.Sum256([]byte(apiKey))
		if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

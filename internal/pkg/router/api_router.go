package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/hotspotvend/HotspotVend/app/controllers"
	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: time.Minute,
		// Redis-backed so the limit holds across replicas behind the
		// gateway, not per process.
		Storage: newLimiterStorage(),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}))

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Get("/plans", controllers.HandleAPIPlans)
	v1.Post("/purchase", controllers.HandleAPIPurchase)
	v1.Get("/status/:device_id", controllers.HandleAPIStatus)
	v1.Get("/stats", controllers.HandleAPIStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// newLimiterStorage connects the limiter to the same Redis the cache uses.
func newLimiterStorage() *redisstorage.Storage {
	return redisstorage.New(redisstorage.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnvInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: env.GetEnvInt("CACHE_LIMITER_DB", 1),
	})
}

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hotspotvend/HotspotVend/app/controllers"
	"github.com/hotspotvend/HotspotVend/internal/pkg/entitlement"
)

type HttpRouter struct {
	svc *entitlement.Service
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Initialize controllers with their repositories before any route can
	// be hit.
	controllers.InitializePortalController(h.svc)
	controllers.InitializeAdminController(h.svc)
	controllers.InitializeAdminPlanController()

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter(svc *entitlement.Service) *HttpRouter {
	return &HttpRouter{svc: svc}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Liveness probe for the network gateway's health checks
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}

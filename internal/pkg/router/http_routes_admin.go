package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hotspotvend/HotspotVend/app/controllers"
	"github.com/hotspotvend/HotspotVend/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin/api", middleware.AdminAuthMiddleware())
	adminGroup.Get("/dashboard", controllers.HandleAdminDashboard)

	// Ledger and entitlement views
	adminGroup.Get("/payments", controllers.HandleAdminPayments)
	adminGroup.Get("/subscriptions", controllers.HandleAdminSubscriptions)
	adminGroup.Post("/subscriptions/:uuid/disconnect", controllers.HandleAdminDisconnect)

	// Orphaned-payment reconciliation
	adminGroup.Get("/reconciliation", controllers.HandleAdminOrphanedPayments)
	adminGroup.Post("/reconciliation/:uuid/grant", controllers.HandleAdminReconcileGrant)

	// Manual expiry sweep trigger
	adminGroup.Post("/sweep", controllers.HandleAdminSweepNow)

	// Plan catalog management
	adminGroup.Get("/plans", controllers.HandleAdminPlans)
	adminGroup.Post("/plans", controllers.HandleAdminPlanCreate)
	adminGroup.Put("/plans/:id", controllers.HandleAdminPlanUpdate)
	adminGroup.Delete("/plans/:id", controllers.HandleAdminPlanDelete)

	// Voucher management
	adminGroup.Get("/vouchers", controllers.HandleAdminVouchers)
	adminGroup.Post("/vouchers", controllers.HandleAdminVoucherBatchCreate)
	adminGroup.Delete("/vouchers/:id", controllers.HandleAdminVoucherDelete)

	// Runtime portal settings
	adminGroup.Get("/settings", controllers.HandleAdminSettings)
	adminGroup.Put("/settings", controllers.HandleAdminSettingsUpdate)
}

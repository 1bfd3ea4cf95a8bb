package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hotspotvend/HotspotVend/internal/pkg/entitlement"
)

// Router installs a set of routes on the fiber app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires every route group. HttpRouter goes first so the
// controllers are initialized before the API routes reference them.
func InstallRouter(app *fiber.App, svc *entitlement.Service) {
	setup(app, NewHttpRouter(svc), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

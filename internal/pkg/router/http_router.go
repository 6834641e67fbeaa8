package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pixmart/pixmart/app/controllers"
	"github.com/pixmart/pixmart/internal/pkg/middleware"
	"github.com/pixmart/pixmart/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Billing provider webhooks live outside /api: no session, no rate
	// limiter, signatures are verified in the controllers.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
	app.Post("/webhooks/paypal", controllers.HandlePayPalWebhook)
	app.Post("/webhooks/crypto", controllers.HandleCryptoWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

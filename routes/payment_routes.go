package routes

import (
	"github.com/dersly/backend/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, h *handlers.PaymentHandler) {
	api := app.Group("/api/v1")

	// The gateway posts here server-to-server; authentication is the checkout
	// token itself.
	api.Post("/payments/callback", h.GatewayCallback)
}

package routes

import (
	"github.com/dersly/backend/handlers"
	"github.com/dersly/backend/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.AdminHandler) {
	admin := app.Group("/api/v1/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Post("/appointments/:appointmentId/approve-transfer", h.ApproveBankTransfer)
	admin.Post("/appointments/:appointmentId/reject-transfer", h.RejectBankTransfer)

	admin.Get("/reports/earnings", h.GetMonthlyReport)

	admin.Get("/payouts/wallets", h.ListWallets)
	admin.Post("/payouts", h.ProcessPayout)
	admin.Post("/payouts/bulk", h.ProcessBulkPayout)
}

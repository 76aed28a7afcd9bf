package routes

import (
	"github.com/dersly/backend/handlers"
	"github.com/dersly/backend/middleware"
	"github.com/gofiber/fiber/v2"
)

func AppointmentRoutes(app *fiber.App, h *handlers.AppointmentHandler, th *handlers.TeacherHandler) {
	api := app.Group("/api/v1")

	appointments := api.Group("/appointments", middleware.Protected())
	appointments.Get("/me", h.GetMyAppointments)
	appointments.Post("", h.CreateAppointment)
	appointments.Post("/:appointmentId/cancel", h.CancelAppointment)
	appointments.Post("/:appointmentId/receipt", h.SubmitReceipt)

	teacher := api.Group("/teacher/appointments", middleware.Protected(), middleware.TeacherRequired())
	teacher.Get("/me", th.GetMyTeacherAppointments)
	teacher.Post("/:appointmentId/start", th.MarkLessonStarted)
	teacher.Post("/:appointmentId/no-show", th.MarkNoShow)
	teacher.Post("/:appointmentId/feedback", th.SubmitFeedback)
}

package handlers

import (
	"context"

	"github.com/dersly/backend/models"
	"github.com/dersly/backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type teacherLessonService interface {
	MarkLessonStarted(ctx context.Context, id, teacherID uuid.UUID) (*models.Appointment, error)
	MarkNoShow(ctx context.Context, id, teacherID uuid.UUID, notes *string) (*models.Appointment, error)
	SubmitFeedback(ctx context.Context, id, teacherID uuid.UUID, feedback string) (*models.Appointment, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Appointment, error)
}

type TeacherHandler struct {
	service teacherLessonService
}

func NewTeacherHandler(service *services.AppointmentService) *TeacherHandler {
	return &TeacherHandler{service: service}
}

func (h *TeacherHandler) GetMyTeacherAppointments(c *fiber.Ctx) error {
	teacherID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	appts, err := h.service.ListByTeacher(c.Context(), teacherID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appts)
}

func (h *TeacherHandler) MarkLessonStarted(c *fiber.Ctx) error {
	teacherID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	appt, err := h.service.MarkLessonStarted(c.Context(), id, teacherID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appt)
}

type NoShowRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func (h *TeacherHandler) MarkNoShow(c *fiber.Ctx) error {
	teacherID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req NoShowRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	appt, err := h.service.MarkNoShow(c.Context(), id, teacherID, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appt)
}

type TeacherFeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,min=10"`
}

func (h *TeacherHandler) SubmitFeedback(c *fiber.Ctx) error {
	teacherID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req TeacherFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	appt, err := h.service.SubmitFeedback(c.Context(), id, teacherID, req.Feedback)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Feedback submitted successfully", "appointment": appt})
}

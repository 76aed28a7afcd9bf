package handlers

import (
	"context"
	"time"

	"github.com/dersly/backend/models"
	"github.com/dersly/backend/payments"
	"github.com/dersly/backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type appointmentBookingService interface {
	Create(ctx context.Context, input services.CreateAppointmentInput) (*models.Appointment, *payments.CheckoutSession, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID, actorRole string, reason *string) (*models.Appointment, error)
	SubmitReceipt(ctx context.Context, id, studentID uuid.UUID, receiptURL string) (*models.Appointment, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Appointment, error)
}

type AppointmentHandler struct {
	service appointmentBookingService
}

func NewAppointmentHandler(service *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

type CreateAppointmentRequest struct {
	TeacherID       string  `json:"teacher_id" validate:"required,uuid"`
	SubjectID       string  `json:"subject_id" validate:"required,uuid"`
	ScheduledAt     string  `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=30,max=180"`
	PaymentMethod   string  `json:"payment_method" validate:"required,oneof=CREDIT_CARD BANK_TRANSFER"`
	Note            *string `json:"note,omitempty"`
}

func (h *AppointmentHandler) CreateAppointment(c *fiber.Ctx) error {
	studentID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	teacherID, _ := uuid.Parse(req.TeacherID)
	subjectID, _ := uuid.Parse(req.SubjectID)
	scheduledAt, _ := time.Parse(time.RFC3339, req.ScheduledAt)

	appt, session, err := h.service.Create(c.Context(), services.CreateAppointmentInput{
		StudentID:       studentID,
		TeacherID:       teacherID,
		SubjectID:       subjectID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		PaymentMethod:   req.PaymentMethod,
		Note:            req.Note,
	})
	if err != nil {
		// A gateway failure after the insert keeps the booking; surface both.
		if appt != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"appointment": appt,
				"error":       "Payment could not be initiated, please try again.",
			})
		}
		return respondError(c, err)
	}

	resp := fiber.Map{"appointment": appt}
	if session != nil {
		resp["checkout_form_content"] = session.CheckoutFormContent
		resp["checkout_token"] = session.Token
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AppointmentHandler) GetMyAppointments(c *fiber.Ctx) error {
	studentID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	appts, err := h.service.ListByStudent(c.Context(), studentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appts)
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *AppointmentHandler) CancelAppointment(c *fiber.Ctx) error {
	actorID, role, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req CancelAppointmentRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	appt, err := h.service.Cancel(c.Context(), id, actorID, role, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appt)
}

type SubmitReceiptRequest struct {
	ReceiptURL string `json:"receipt_url" validate:"required,url"`
}

func (h *AppointmentHandler) SubmitReceipt(c *fiber.Ctx) error {
	studentID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req SubmitReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	appt, err := h.service.SubmitReceipt(c.Context(), id, studentID, req.ReceiptURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Receipt submitted. An admin will review your transfer shortly.",
		"appointment": appt,
	})
}

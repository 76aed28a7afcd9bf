package handlers

import (
	"context"

	"github.com/dersly/backend/models"
	"github.com/dersly/backend/services"
	"github.com/gofiber/fiber/v2"
)

type paymentCallbackService interface {
	HandleGatewayCallback(ctx context.Context, token string) (*models.Appointment, error)
}

type PaymentHandler struct {
	service paymentCallbackService
}

func NewPaymentHandler(service *services.AppointmentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type GatewayCallbackRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}

// GatewayCallback is hit by the hosted-checkout provider after the buyer
// finishes the card form. The token is exchanged for the payment result and,
// on success, the appointment is confirmed.
func (h *PaymentHandler) GatewayCallback(c *fiber.Ctx) error {
	var req GatewayCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse callback"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	appt, err := h.service.HandleGatewayCallback(c.Context(), req.Token)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment confirmed", "appointment": appt})
}

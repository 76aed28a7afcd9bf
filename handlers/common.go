package handlers

import (
	"errors"

	"github.com/dersly/backend/apperrors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var validate = validator.New()

func actorFromToken(c *fiber.Ctx) (uuid.UUID, string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, "", errors.New("missing token")
	}
	claims := token.Claims.(jwt.MapClaims)

	rawID, _ := claims["user_id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid user id claim")
	}
	role, _ := claims["role"].(string)
	return id, role, nil
}

// respondError maps the service error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case apperrors.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case apperrors.IsGateway(err):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment provider is unavailable, please try again."})
	case errors.Is(err, apperrors.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Resource not found"})
	case errors.Is(err, apperrors.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have access to this resource"})
	case errors.Is(err, apperrors.ErrSlotTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This slot is no longer available"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "The appointment is not in a state that allows this action"})
	case errors.Is(err, apperrors.ErrDeadlineExceeded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "The cancellation deadline has passed"})
	case errors.Is(err, apperrors.ErrLessonNotStarted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "The lesson has not started yet"})
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Insufficient wallet balance"})
	case errors.Is(err, apperrors.ErrMissingPayoutDetails):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Teacher has no bank account on file"})
	case errors.Is(err, apperrors.ErrDuplicateEarning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This appointment has already been settled"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong"})
	}
}

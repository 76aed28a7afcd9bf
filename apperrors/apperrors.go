package apperrors

import (
	"errors"
	"fmt"
)

// Booking and transition errors. Handlers translate these to HTTP statuses;
// services never see a fiber.Ctx.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("actor has no rights over this resource")
	ErrSlotTaken         = errors.New("slot no longer available")
	ErrDuplicateOrder    = errors.New("order code already exists")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrDeadlineExceeded  = errors.New("cancellation deadline has passed")
	ErrLessonNotStarted  = errors.New("lesson has not started yet")
)

// Settlement and payout errors.
var (
	ErrInsufficientBalance  = errors.New("insufficient wallet balance")
	ErrMissingPayoutDetails = errors.New("teacher has no bank account on file")
	ErrDuplicateEarning     = errors.New("appointment already credited")
)

// ValidationError rejects malformed or out-of-range input before any state
// change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// GatewayError wraps a payment provider failure. The appointment stays in
// PENDING_PAYMENT; the caller decides whether to retry.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

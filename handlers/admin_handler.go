package handlers

import (
	"context"
	"strconv"

	"github.com/dersly/backend/models"
	"github.com/dersly/backend/repository"
	"github.com/dersly/backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type adminAppointmentService interface {
	ConfirmPayment(ctx context.Context, id uuid.UUID, source, gatewayPaymentID string) (*models.Appointment, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID, actorRole string, reason *string) (*models.Appointment, error)
}

type adminSettlementService interface {
	MonthlyReport(ctx context.Context, year, month int) ([]repository.TeacherEarningsRow, error)
	ListWallets(ctx context.Context) ([]models.Wallet, error)
}

type adminPayoutService interface {
	ProcessPayout(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, actorID uuid.UUID, reference string) (*services.PayoutResult, error)
	ProcessBulkPayout(ctx context.Context, items []services.PayoutItem, actorID uuid.UUID, batchReference string) (*services.BulkPayoutSummary, error)
}

type AdminHandler struct {
	appointments adminAppointmentService
	settlement   adminSettlementService
	payouts      adminPayoutService
}

func NewAdminHandler(appointments *services.AppointmentService, settlement *services.SettlementService, payouts *services.PayoutService) *AdminHandler {
	return &AdminHandler{
		appointments: appointments,
		settlement:   settlement,
		payouts:      payouts,
	}
}

// ApproveBankTransfer confirms a bank-transfer appointment after the admin
// verified the receipt against the platform's account.
func (h *AdminHandler) ApproveBankTransfer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	appt, err := h.appointments.ConfirmPayment(c.Context(), id, "admin", "")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Bank transfer approved", "appointment": appt})
}

type RejectTransferRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *AdminHandler) RejectBankTransfer(c *fiber.Ctx) error {
	adminID, role, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	id, err := uuid.Parse(c.Params("appointmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req RejectTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	appt, err := h.appointments.Cancel(c.Context(), id, adminID, role, &req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Bank transfer rejected, appointment cancelled", "appointment": appt})
}

func (h *AdminHandler) GetMonthlyReport(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "year is required"})
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "month is required"})
	}

	rows, err := h.settlement.MonthlyReport(c.Context(), year, month)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}

func (h *AdminHandler) ListWallets(c *fiber.Ctx) error {
	wallets, err := h.settlement.ListWallets(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(wallets)
}

type ProcessPayoutRequest struct {
	WalletID  string `json:"wallet_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required"`
	Reference string `json:"reference,omitempty"`
}

func (h *AdminHandler) ProcessPayout(c *fiber.Ctx) error {
	adminID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req ProcessPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	walletID, _ := uuid.Parse(req.WalletID)
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be a positive decimal"})
	}

	result, err := h.payouts.ProcessPayout(c.Context(), walletID, amount, adminID, req.Reference)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

type BulkPayoutItemRequest struct {
	WalletID string `json:"wallet_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required"`
}

type BulkPayoutRequest struct {
	BatchReference string                  `json:"batch_reference" validate:"required"`
	Items          []BulkPayoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *AdminHandler) ProcessBulkPayout(c *fiber.Ctx) error {
	adminID, _, err := actorFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req BulkPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	items := make([]services.PayoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		walletID, err := uuid.Parse(item.WalletID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid wallet id in items"})
		}
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil || !amount.IsPositive() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount in items"})
		}
		items = append(items, services.PayoutItem{WalletID: walletID, Amount: amount})
	}

	summary, err := h.payouts.ProcessBulkPayout(c.Context(), items, adminID, req.BatchReference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

package payments

import (
	"github.com/shopspring/decimal"
)

type CheckoutOrder struct {
	OrderCode      string
	Amount         decimal.Decimal
	BuyerName      string
	BuyerEmail     string
	ConversationID string
}

type CheckoutSession struct {
	CheckoutFormContent string
	Token               string
}

type PaymentResult struct {
	Status         string
	PaymentID      string
	ConversationID string
}

const ResultSuccess = "success"

// Gateway is the hosted-checkout payment provider. A ResultSuccess from
// RetrieveResult is what drives PENDING_PAYMENT -> CONFIRMED for card
// payments.
type Gateway interface {
	InitializePayment(order CheckoutOrder) (*CheckoutSession, error)
	RetrieveResult(token string) (*PaymentResult, error)
	Refund(paymentID string, amount decimal.Decimal) error
}

package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"academypay/internal/payfast"
)

// Checkout describes what the payer is charged for.
type Checkout struct {
	Reference       string
	Amount          decimal.Decimal
	ItemName        string
	ItemDescription string
	NameFirst       string
	NameLast        string
	Email           string
	CustomStr       [5]string
}

// PaymentResult contains the result of a payment creation.
type PaymentResult struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
	FormHTML   string `json:"-"`
}

// VerifyResult contains the result of a payment verification.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	RefID    string `json:"ref_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Gateway defines the interface for payment gateway implementations.
type Gateway interface {
	// Name returns the gateway identifier.
	Name() string

	// CreatePayment builds the redirect for a new payment.
	CreatePayment(ctx context.Context, co *Checkout) (*PaymentResult, error)

	// VerifyPayment confirms a payment with the gateway after a notification.
	// An error means the answer is unknown, not that the payment failed.
	VerifyPayment(ctx context.Context, refID string) (*VerifyResult, error)
}

// NotificationGateway is a gateway that pushes signed notifications.
type NotificationGateway interface {
	Gateway

	// MerchantID is the account notifications must be addressed to.
	MerchantID() string

	// Authenticate checks the notification signature.
	Authenticate(n *payfast.Notification) bool
}

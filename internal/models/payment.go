package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment states. Complete, failed, cancelled and expired are terminal, but a
// confirmed COMPLETE notification still settles a cancelled or expired payment.
const (
	PaymentPending     = "pending"
	PaymentUnconfirmed = "unconfirmed"
	PaymentComplete    = "complete"
	PaymentFailed      = "failed"
	PaymentCancelled   = "cancelled"
	PaymentExpired     = "expired"
)

// OpenPaymentStatuses are the states a notification may still move.
var OpenPaymentStatuses = []string{PaymentPending, PaymentUnconfirmed}

// SettleablePaymentStatuses are the states a COMPLETE notification may move.
var SettleablePaymentStatuses = []string{PaymentPending, PaymentUnconfirmed, PaymentCancelled, PaymentExpired}

// Payment maps to the `payments` table. Reference is the m_payment_id sent to
// the gateway; PfPaymentID is the gateway's own reference.
type Payment struct {
	ID            uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BookingID     uint            `gorm:"column:booking_id;not null;index" json:"booking_id"`
	Reference     string          `gorm:"column:reference;size:64;uniqueIndex" json:"reference"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(10,2);not null" json:"amount"`
	Currency      string          `gorm:"column:currency;size:3;not null;default:ZAR" json:"currency"`
	Status        string          `gorm:"column:status;size:30;not null;default:pending;index" json:"status"`
	FailureReason string          `gorm:"column:failure_reason;size:255" json:"failure_reason,omitempty"`
	PfPaymentID   string          `gorm:"column:payfast_payment_id;size:64;index" json:"payfast_payment_id"`
	PayfastData   string          `gorm:"column:payfast_data;type:json" json:"payfast_data,omitempty"`
	ProcessedAt   *time.Time      `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether no further notification may change the payment.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentPending, PaymentUnconfirmed:
		return false
	}
	return true
}

// IsAbandoned reports whether the payer or the expiry job gave up on the payment.
func (p *Payment) IsAbandoned() bool {
	return p.Status == PaymentCancelled || p.Status == PaymentExpired
}

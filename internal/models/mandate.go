package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mandate states.
const (
	MandateActive    = "active"
	MandateCancelled = "cancelled"
	MandateSuspended = "suspended"
)

// DebitOrderMandate maps to the `debit_order_mandates` table.
type DebitOrderMandate struct {
	ID              uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          uint            `gorm:"column:user_id;not null;index" json:"user_id"`
	OrganizationID  uint            `gorm:"column:organization_id;not null;index" json:"organization_id"`
	Reference       string          `gorm:"column:mandate_reference;size:40;uniqueIndex" json:"mandate_reference"`
	BankName        string          `gorm:"column:bank_name;size:100" json:"bank_name"`
	AccountHolder   string          `gorm:"column:account_holder;size:255" json:"account_holder"`
	AccountNumber   string          `gorm:"column:account_number;size:11" json:"-"`
	BranchCode      string          `gorm:"column:branch_code;size:6" json:"branch_code"`
	AccountType     string          `gorm:"column:account_type;size:20" json:"account_type"`
	MaxAmount       decimal.Decimal `gorm:"column:max_amount;type:decimal(10,2)" json:"max_amount"`
	Frequency       string          `gorm:"column:frequency;size:20" json:"frequency"`
	Status          string          `gorm:"column:status;size:20;default:active;index" json:"status"`
	PayerEmail      string          `gorm:"column:payer_email;size:255" json:"payer_email"`
	StartDate       time.Time       `gorm:"column:start_date" json:"start_date"`
	EndDate         *time.Time      `gorm:"column:end_date" json:"end_date,omitempty"`
	NextProcessDate time.Time       `gorm:"column:next_process_date;index" json:"next_process_date"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (DebitOrderMandate) TableName() string {
	return "debit_order_mandates"
}

// MaskedAccount returns the account number with all but the last 4 digits hidden.
func (m *DebitOrderMandate) MaskedAccount() string {
	n := len(m.AccountNumber)
	if n <= 4 {
		return m.AccountNumber
	}
	masked := make([]byte, n)
	for i := 0; i < n-4; i++ {
		masked[i] = '*'
	}
	copy(masked[n-4:], m.AccountNumber[n-4:])
	return string(masked)
}

// Debit-order transaction states.
const (
	TransactionSuccessful = "successful"
	TransactionFailed     = "failed"
)

// DebitOrderTransaction maps to the `debit_order_transactions` table.
type DebitOrderTransaction struct {
	ID              uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MandateID       uint            `gorm:"column:mandate_id;not null;index" json:"mandate_id"`
	BookingID       *uint           `gorm:"column:booking_id" json:"booking_id,omitempty"`
	Reference       string          `gorm:"column:transaction_reference;size:40" json:"transaction_reference"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(10,2)" json:"amount"`
	TransactionType string          `gorm:"column:transaction_type;size:30" json:"transaction_type"`
	Status          string          `gorm:"column:status;size:20" json:"status"`
	FailureReason   string          `gorm:"column:failure_reason;size:255" json:"failure_reason,omitempty"`
	Description     string          `gorm:"column:description;size:255" json:"description,omitempty"`
	ProcessedAt     time.Time       `gorm:"column:processed_at" json:"processed_at"`
}

func (DebitOrderTransaction) TableName() string {
	return "debit_order_transactions"
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking payment states.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingFailed    = "failed"
	BookingRefunded  = "refunded"
)

// Booking maps to the `bookings` table. Only the columns the payment flow
// reads or writes are mapped.
type Booking struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ClassID          uint            `gorm:"column:class_id;not null" json:"class_id"`
	OrganizationID   uint            `gorm:"column:organization_id;index" json:"organization_id"`
	ParticipantName  string          `gorm:"column:participant_name;size:255;not null" json:"participant_name"`
	ParticipantEmail string          `gorm:"column:participant_email;size:255;not null" json:"participant_email"`
	ParticipantPhone string          `gorm:"column:participant_phone;size:50" json:"participant_phone"`
	BookingDate      time.Time       `gorm:"column:booking_date;not null" json:"booking_date"`
	PaymentStatus    string          `gorm:"column:payment_status;size:30;not null;default:pending" json:"payment_status"`
	PaymentMethod    string          `gorm:"column:payment_method;size:30;default:payfast" json:"payment_method"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(10,2);not null" json:"amount"`
	PayfastPaymentID string          `gorm:"column:payfast_payment_id;size:64;index" json:"payfast_payment_id"`
	ClassName        string          `gorm:"column:class_name;size:255" json:"class_name"`
	Notes            string          `gorm:"column:notes;type:text" json:"notes"`
}

func (Booking) TableName() string {
	return "bookings"
}

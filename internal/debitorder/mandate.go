package debitorder

import (
	"fmt"
	"strings"
	"time"

	"academypay/internal/pkg/utils"
)

// Frequencies a mandate can be debited on.
const (
	FrequencyWeekly   = "weekly"
	FrequencyBiWeekly = "bi-weekly"
	FrequencyMonthly  = "monthly"
)

// Account types accepted on a mandate.
var AccountTypes = []string{"current", "savings", "transmission"}

// Transaction types.
const (
	TxClassPayment      = "class_payment"
	TxMembershipPayment = "membership_payment"
	TxLateFee           = "late_fee"
)

// MandateReference returns a new mandate reference: DO, unix millis, 6 chars.
func MandateReference(now time.Time) string {
	return fmt.Sprintf("DO%d%s", now.UnixMilli(), utils.RandomUpper(6))
}

// TransactionReference returns a new transaction reference: TX, unix millis, 8 chars.
func TransactionReference(now time.Time) string {
	return fmt.Sprintf("TX%d%s", now.UnixMilli(), utils.RandomUpper(8))
}

// NextProcessDate returns the next debit date after from. Unknown
// frequencies are treated as monthly.
func NextProcessDate(from time.Time, frequency string) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiWeekly:
		return from.AddDate(0, 0, 14)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// NextProcessDateAfter steps from by frequency until the result is after
// now, so an overdue mandate is debited once and then lands in the future.
func NextProcessDateAfter(from time.Time, frequency string, now time.Time) time.Time {
	next := NextProcessDate(from, frequency)
	for !next.After(now) {
		next = NextProcessDate(next, frequency)
	}
	return next
}

// ValidFrequency reports whether f is a supported frequency.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ValidAccountType reports whether t is a supported account type.
func ValidAccountType(t string) bool {
	for _, at := range AccountTypes {
		if at == t {
			return true
		}
	}
	return false
}

// AccountError describes why bank details were rejected.
type AccountError struct {
	Message string
}

func (e *AccountError) Error() string { return e.Message }

// ValidateBankAccount checks South African account and branch code formats.
func ValidateBankAccount(accountNumber, branchCode string) error {
	if len(accountNumber) < 9 || len(accountNumber) > 11 {
		return &AccountError{Message: "Account number must be between 9 and 11 digits"}
	}
	if len(branchCode) != 6 {
		return &AccountError{Message: "Branch code must be exactly 6 digits"}
	}
	if !utils.IsDigits(accountNumber) {
		return &AccountError{Message: "Account number must contain only digits"}
	}
	if !utils.IsDigits(branchCode) {
		return &AccountError{Message: "Branch code must contain only digits"}
	}
	return nil
}

// Receipt is the payer notification for a processed debit.
type Receipt struct {
	Subject string
	Body    string
}

// ReceiptFor builds the notification sent after a successful debit.
func ReceiptFor(amount, organisation, txType string, date time.Time) Receipt {
	kind := strings.ToUpper(strings.Replace(txType, "_", " ", 1))
	body := fmt.Sprintf(`Dear Member,

This is to confirm that a debit order has been processed on your account:

Amount: R %s
Organization: %s
Transaction Type: %s
Date: %s

If you have any queries regarding this transaction, please contact the organization directly.

Thank you for using our debit order service.
`, amount, organisation, kind, date.Format("2006/01/02"))

	return Receipt{
		Subject: "Debit Order Processed - " + organisation,
		Body:    body,
	}
}

package models

// CheckoutRequest starts a gateway payment for a booking.
// Mode is "url" (default) or "form".
type CheckoutRequest struct {
	BookingID uint   `json:"booking_id" form:"booking_id"`
	Mode      string `json:"mode" form:"mode"`
}

// CheckoutResponse is returned for Mode "url".
type CheckoutResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

// MandateRequest creates a debit-order mandate.
type MandateRequest struct {
	UserID         uint   `json:"user_id"`
	OrganizationID uint   `json:"organization_id"`
	BankName       string `json:"bank_name"`
	AccountHolder  string `json:"account_holder"`
	AccountNumber  string `json:"account_number"`
	BranchCode     string `json:"branch_code"`
	AccountType    string `json:"account_type"`
	MaxAmount      string `json:"max_amount"`
	Frequency      string `json:"frequency"`
	PayerEmail     string `json:"payer_email"`
	StartDate      string `json:"start_date"` // YYYY-MM-DD
	EndDate        string `json:"end_date,omitempty"`
}

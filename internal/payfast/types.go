package payfast

import (
	"fmt"
	"net/url"
	"strings"
)

// Status is the payment_status reported by the gateway.
type Status string

const (
	StatusComplete  Status = "COMPLETE"
	StatusFailed    Status = "FAILED"
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
)

// PaymentRequest is the outbound request sent to the process endpoint.
// The passphrase is configured on the Codec, never carried here.
type PaymentRequest struct {
	MerchantID      string
	MerchantKey     string
	ReturnURL       string
	CancelURL       string
	NotifyURL       string
	NameFirst       string
	NameLast        string
	EmailAddress    string
	MPaymentID      string
	Amount          string
	ItemName        string
	ItemDescription string
	CustomStr       [5]string
}

// Fields converts the request into the flat mapping used for signing.
// Every named field is present, empty or not. Unset custom strings are left out.
func (r *PaymentRequest) Fields() Fields {
	f := Fields{
		"merchant_id":      r.MerchantID,
		"merchant_key":     r.MerchantKey,
		"return_url":       r.ReturnURL,
		"cancel_url":       r.CancelURL,
		"notify_url":       r.NotifyURL,
		"name_first":       r.NameFirst,
		"name_last":        r.NameLast,
		"email_address":    r.EmailAddress,
		"m_payment_id":     r.MPaymentID,
		"amount":           r.Amount,
		"item_name":        r.ItemName,
		"item_description": r.ItemDescription,
	}
	for i, v := range r.CustomStr {
		if v != "" {
			f[fmt.Sprintf("custom_str%d", i+1)] = v
		}
	}
	return f
}

// Notification is an inbound server-to-server callback.
// Raw holds every posted field verbatim; the signature is computed over it.
type Notification struct {
	Raw Fields
}

// ParseNotification builds a Notification from a decoded form body.
// Only the first value of a repeated key is kept.
func ParseNotification(form url.Values) *Notification {
	raw := make(Fields, len(form))
	for k, v := range form {
		if len(v) > 0 {
			raw[k] = v[0]
		} else {
			raw[k] = ""
		}
	}
	return &Notification{Raw: raw}
}

// VerifyNotification reports whether the notification's signature matches
// its other fields under passphrase. It never errors; a missing signature
// simply does not match.
func VerifyNotification(n *Notification, passphrase string) bool {
	if n == nil {
		return false
	}
	return Verify(n.Raw, passphrase)
}

func (n *Notification) get(key string) string { return n.Raw[key] }

func (n *Notification) MPaymentID() string      { return n.get("m_payment_id") }
func (n *Notification) PFPaymentID() string     { return n.get("pf_payment_id") }
func (n *Notification) ItemName() string        { return n.get("item_name") }
func (n *Notification) ItemDescription() string { return n.get("item_description") }
func (n *Notification) AmountGross() string     { return n.get("amount_gross") }
func (n *Notification) AmountFee() string       { return n.get("amount_fee") }
func (n *Notification) AmountNet() string       { return n.get("amount_net") }
func (n *Notification) NameFirst() string       { return n.get("name_first") }
func (n *Notification) NameLast() string        { return n.get("name_last") }
func (n *Notification) EmailAddress() string    { return n.get("email_address") }
func (n *Notification) MerchantID() string      { return n.get("merchant_id") }
func (n *Notification) Signature() string       { return n.get(FieldSignature) }

// Status returns the upper-cased payment_status.
func (n *Notification) Status() Status {
	return Status(strings.ToUpper(strings.TrimSpace(n.get("payment_status"))))
}

// CustomStr returns custom_str1..custom_str5; i is 1-based.
func (n *Notification) CustomStr(i int) string {
	return n.get(fmt.Sprintf("custom_str%d", i))
}

// CustomInt returns custom_int1..custom_int5 as posted; i is 1-based.
func (n *Notification) CustomInt(i int) string {
	return n.get(fmt.Sprintf("custom_int%d", i))
}

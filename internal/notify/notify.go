package notify

import (
	"context"
	"fmt"
	"html"

	"academypay/internal/models"
	"academypay/internal/pkg/utils"
)

// Reporter posts operational reports to the admin channel.
type Reporter interface {
	Report(ctx context.Context, text string) error
}

// Sender delivers an email to a payer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Nop discards everything. Used when a channel is not configured.
type Nop struct{}

func (Nop) Report(context.Context, string) error               { return nil }
func (Nop) Send(context.Context, string, string, string) error { return nil }

// PaymentReport renders the admin message for a completed gateway payment.
func PaymentReport(p *models.Payment, b *models.Booking, pfPaymentID string) string {
	return fmt.Sprintf(
		"💵 <b>New payment</b>\n\nBooking: #%d\nParticipant: %s\nAmount: R %s\nReference: <code>%s</code>\nPayFast ID: <code>%s</code>",
		b.ID, html.EscapeString(b.ParticipantName), utils.FormatRand(p.Amount),
		html.EscapeString(p.Reference), html.EscapeString(pfPaymentID),
	)
}

// PaymentReceipt renders the payer email for a completed gateway payment.
func PaymentReceipt(p *models.Payment, b *models.Booking) (subject, body string) {
	subject = "Payment received - booking #" + fmt.Sprint(b.ID)
	item := b.ClassName
	if item == "" {
		item = "Class booking"
	}
	body = fmt.Sprintf(`Hi %s,

We have received your payment.

Item: %s
Amount: R %s
Reference: %s

Thank you!
`, b.ParticipantName, item, utils.FormatRand(p.Amount), p.Reference)
	return subject, body
}

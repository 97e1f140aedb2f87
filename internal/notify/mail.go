package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends plain-text email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(host string, port int, user, pass, from string) *Mailer {
	if from == "" {
		from = user
	}
	return &Mailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

// Message builds the email without sending it.
func (m *Mailer) Message(to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

// Send delivers one email.
func (m *Mailer) Send(_ context.Context, to, subject, body string) error {
	if err := m.dialer.DialAndSend(m.Message(to, subject, body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

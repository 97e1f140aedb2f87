package payfast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"academypay/internal/pkg/httpclient"
)

// Validation is the gateway's answer to a confirmation request.
type Validation int

const (
	ValidationInvalid Validation = iota
	ValidationValid
)

func (v Validation) String() string {
	if v == ValidationValid {
		return "VALID"
	}
	return "INVALID"
}

// ErrUnconfirmed wraps transport failures during confirmation. The payment
// must be held, not failed.
var ErrUnconfirmed = errors.New("payfast: payment unconfirmed")

// Validator performs the server-to-server confirmation of a notification.
type Validator struct {
	url     string
	client  *httpclient.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewValidator creates a validator against the sandbox or production gateway.
func NewValidator(sandbox bool) *Validator {
	return NewValidatorWithURL(ValidateEndpoint(sandbox), httpclient.New().
		WithTimeout(15*time.Second).
		WithHeader("User-Agent", "academypay"))
}

// NewValidatorWithURL targets an explicit endpoint.
func NewValidatorWithURL(url string, client *httpclient.Client) *Validator {
	var st gobreaker.Settings
	st.Name = "payfast-validate"
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}

	return &Validator{
		url:     url,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](st),
	}
}

// Validate asks the gateway whether pfPaymentID is a genuine payment.
// A body of exactly "VALID" (whitespace trimmed) is valid; any other body is
// invalid. Transport errors and an open breaker return ErrUnconfirmed.
func (v *Validator) Validate(ctx context.Context, pfPaymentID string) (Validation, error) {
	body, err := v.breaker.Execute(func() ([]byte, error) {
		return v.client.PostForm(ctx, v.url, map[string]string{
			"pf_payment_id": pfPaymentID,
		})
	})
	if err != nil {
		return ValidationInvalid, fmt.Errorf("%w: %v", ErrUnconfirmed, err)
	}

	if strings.TrimSpace(string(body)) == "VALID" {
		return ValidationValid, nil
	}
	return ValidationInvalid, nil
}

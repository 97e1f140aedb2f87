package payment

import (
	"context"
	"fmt"
	"strings"

	"academypay/internal/config"
	"academypay/internal/payfast"
	"academypay/internal/pkg/utils"
)

// Confirmer performs the server-to-server validation call.
type Confirmer interface {
	Validate(ctx context.Context, pfPaymentID string) (payfast.Validation, error)
}

// PayFastGateway implements NotificationGateway for PayFast.
type PayFastGateway struct {
	cfg       config.PayFastConfig
	codec     *payfast.Codec
	confirmer Confirmer
}

// NewPayFastGateway creates the gateway. A nil confirmer disables
// server-to-server confirmation.
func NewPayFastGateway(cfg config.PayFastConfig, confirmer Confirmer) *PayFastGateway {
	return &PayFastGateway{
		cfg:       cfg,
		codec:     payfast.NewCodec(cfg.Passphrase),
		confirmer: confirmer,
	}
}

func (g *PayFastGateway) Name() string {
	return "payfast"
}

func (g *PayFastGateway) MerchantID() string {
	return g.cfg.MerchantID
}

func (g *PayFastGateway) Authenticate(n *payfast.Notification) bool {
	return g.codec.VerifyNotification(n)
}

// Request builds the signed-over request fields for co.
func (g *PayFastGateway) Request(co *Checkout) *payfast.PaymentRequest {
	return &payfast.PaymentRequest{
		MerchantID:      g.cfg.MerchantID,
		MerchantKey:     g.cfg.MerchantKey,
		ReturnURL:       withReference(g.cfg.ReturnURL, co.Reference),
		CancelURL:       withReference(g.cfg.CancelURL, co.Reference),
		NotifyURL:       g.cfg.NotifyURL,
		NameFirst:       co.NameFirst,
		NameLast:        co.NameLast,
		EmailAddress:    co.Email,
		MPaymentID:      co.Reference,
		Amount:          utils.FormatAmount(co.Amount),
		ItemName:        co.ItemName,
		ItemDescription: co.ItemDescription,
		CustomStr:       co.CustomStr,
	}
}

func (g *PayFastGateway) CreatePayment(_ context.Context, co *Checkout) (*PaymentResult, error) {
	if !co.Amount.IsPositive() {
		return nil, fmt.Errorf("payfast create payment: amount must be positive, got %s", co.Amount)
	}

	fields := g.Request(co).Fields()
	form, err := g.codec.RedirectForm(fields, g.cfg.Sandbox)
	if err != nil {
		return nil, fmt.Errorf("payfast create payment: %w", err)
	}

	return &PaymentResult{
		OrderID:    co.Reference,
		PaymentURL: g.codec.RedirectURL(fields, g.cfg.Sandbox),
		FormHTML:   form,
	}, nil
}

func (g *PayFastGateway) VerifyPayment(ctx context.Context, pfPaymentID string) (*VerifyResult, error) {
	if g.confirmer == nil {
		return &VerifyResult{Verified: true, RefID: pfPaymentID, Message: "confirmation disabled"}, nil
	}

	res, err := g.confirmer.Validate(ctx, pfPaymentID)
	if err != nil {
		return nil, fmt.Errorf("payfast verify failed: %w", err)
	}

	if res == payfast.ValidationValid {
		return &VerifyResult{Verified: true, RefID: pfPaymentID}, nil
	}
	return &VerifyResult{
		Verified: false,
		Message:  "gateway answered " + res.String(),
	}, nil
}

// withReference appends ?ref=<reference> so the return and cancel pages know
// which payment they belong to.
func withReference(base, reference string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "ref=" + reference
}

// SplitName splits a full name into first name and the rest.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

package handler

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"academypay/internal/metrics"
	"academypay/internal/models"
	"academypay/internal/payfast"
	"academypay/internal/payment"
	"academypay/internal/pkg/utils"
)

// Payments is the payment flow the callback handler drives.
type Payments interface {
	StartCheckout(ctx context.Context, bookingID uint) (*models.Payment, *payment.PaymentResult, error)
	HandleNotification(ctx context.Context, n *payfast.Notification) (payment.Outcome, error)
	Cancel(ctx context.Context, reference string) (bool, error)
}

// PaymentFinder looks up a payment by its m_payment_id.
type PaymentFinder interface {
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
}

// PaymentCallbackHandler serves the payer-facing PayFast endpoints.
type PaymentCallbackHandler struct {
	payments Payments
	finder   PaymentFinder
	logger   *zap.Logger
}

// NewPaymentCallbackHandler creates a new payment callback handler.
func NewPaymentCallbackHandler(payments Payments, finder PaymentFinder, logger *zap.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		payments: payments,
		finder:   finder,
		logger:   logger,
	}
}

// ── Checkout ─────────────────────────────────────────────────────────

// Checkout starts a payment for a booking.
// POST /payment/payfast/checkout
func (h *PaymentCallbackHandler) Checkout(c echo.Context) error {
	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, models.APIResponse{Status: false, Msg: "booking_id is required"})
	}
	mode := req.Mode
	if mode == "" {
		mode = "url"
	}
	if mode != "url" && mode != "form" {
		return c.JSON(http.StatusBadRequest, models.APIResponse{Status: false, Msg: "mode must be url or form"})
	}

	pay, res, err := h.payments.StartCheckout(c.Request().Context(), req.BookingID)
	switch {
	case errors.Is(err, payment.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, models.APIResponse{Status: false, Msg: "Booking not found"})
	case errors.Is(err, payment.ErrAlreadyPaid):
		return c.JSON(http.StatusConflict, models.APIResponse{Status: false, Msg: "Booking is already paid"})
	case errors.Is(err, payment.ErrNoAmount):
		return c.JSON(http.StatusUnprocessableEntity, models.APIResponse{Status: false, Msg: "Booking has no amount due"})
	case err != nil:
		h.logger.Error("Checkout failed", zap.Uint("booking_id", req.BookingID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, models.APIResponse{Status: false, Msg: "Failed to start payment"})
	}

	metrics.Checkouts.WithLabelValues(mode).Inc()

	if mode == "form" {
		return c.HTML(http.StatusOK, res.FormHTML)
	}
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    "Successful",
		Obj: models.CheckoutResponse{
			Reference:   pay.Reference,
			RedirectURL: res.PaymentURL,
		},
	})
}

// ── PayFast ITN ──────────────────────────────────────────────────────

// Notify receives the server-to-server notification.
// POST /payment/payfast/notify
func (h *PaymentCallbackHandler) Notify(c echo.Context) error {
	// Only the body is signed; query parameters on the notify URL are not.
	req := c.Request()
	if err := req.ParseForm(); err != nil {
		return c.String(http.StatusBadRequest, "Bad request")
	}

	n := payfast.ParseNotification(req.PostForm)
	outcome, err := h.payments.HandleNotification(c.Request().Context(), n)
	if err != nil {
		h.logger.Error("Notification processing failed",
			zap.String("m_payment_id", n.MPaymentID()),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return c.String(http.StatusInternalServerError, "Error")
	}

	if outcome == payment.OutcomeRejected {
		return c.String(http.StatusBadRequest, "Invalid signature")
	}

	h.logger.Info("Notification handled",
		zap.String("m_payment_id", n.MPaymentID()),
		zap.String("pf_payment_id", n.PFPaymentID()),
		zap.String("outcome", string(outcome)),
	)
	return c.String(http.StatusOK, "OK")
}

// ── Payer return pages ───────────────────────────────────────────────

// Return renders the page the payer lands on after paying.
// GET /payment/payfast/return?ref=
func (h *PaymentCallbackHandler) Return(c echo.Context) error {
	ref := c.QueryParam("ref")
	if ref == "" {
		return h.renderPaymentResult(c, http.StatusBadRequest, "Error", "Missing payment reference", nil)
	}

	pay, err := h.finder.FindByReference(c.Request().Context(), ref)
	if err != nil {
		return h.renderPaymentResult(c, http.StatusNotFound, "Error", "Payment not found", nil)
	}

	switch pay.Status {
	case models.PaymentComplete:
		return h.renderPaymentResult(c, http.StatusOK, "Payment successful", "Thank you! Your booking is confirmed.", pay)
	case models.PaymentPending, models.PaymentUnconfirmed:
		return h.renderPaymentResult(c, http.StatusOK, "Payment processing", "We are waiting for PayFast to confirm your payment. You will receive an email once it is done.", pay)
	default:
		return h.renderPaymentResult(c, http.StatusOK, "Payment not completed", "Your payment was not completed. No money was taken.", pay)
	}
}

// Cancel renders the page the payer lands on after cancelling at the gateway.
// GET /payment/payfast/cancel?ref=
func (h *PaymentCallbackHandler) Cancel(c echo.Context) error {
	ref := c.QueryParam("ref")
	if ref == "" {
		return h.renderPaymentResult(c, http.StatusBadRequest, "Error", "Missing payment reference", nil)
	}

	if _, err := h.payments.Cancel(c.Request().Context(), ref); err != nil {
		h.logger.Error("Failed to cancel payment", zap.String("reference", ref), zap.Error(err))
	}

	pay, err := h.finder.FindByReference(c.Request().Context(), ref)
	if err != nil {
		pay = nil
	}
	return h.renderPaymentResult(c, http.StatusOK, "Payment cancelled", "You cancelled the payment. You can try again from your booking.", pay)
}

var resultTmpl = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment</title>
    <style>
        body { font-family: Arial, sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        {{if .Reference}}<p>Reference: <span>{{.Reference}}</span></p>{{end}}
        {{if .Amount}}<p>Amount: R <span>{{.Amount}}</span></p>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func (h *PaymentCallbackHandler) renderPaymentResult(c echo.Context, code int, title, message string, pay *models.Payment) error {
	data := map[string]interface{}{
		"Title":   title,
		"Message": message,
	}
	if pay != nil {
		data["Reference"] = pay.Reference
		data["Amount"] = utils.FormatRand(pay.Amount)
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(code)
	return resultTmpl.Execute(c.Response().Writer, data)
}

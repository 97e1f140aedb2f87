package payment

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"academypay/internal/config"
	"academypay/internal/models"
	"academypay/internal/payfast"
	"academypay/internal/pkg/dedup"
)

const testPassphrase = "jt7NOE43FZPn"

type harness struct {
	proc      *Processor
	payments  *memPayments
	bookings  *memBookings
	confirmer *stubConfirmer
	notes     *recorder
	codec     *payfast.Codec
}

func testConfig() config.PayFastConfig {
	return config.PayFastConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		Sandbox:     true,
		ReturnURL:   "https://academy.test/payment/payfast/return",
		CancelURL:   "https://academy.test/payment/payfast/cancel",
		NotifyURL:   "https://academy.test/payment/payfast/notify",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		payments: newMemPayments(),
		bookings: newMemBookings(models.Booking{
			ID:               7,
			ParticipantName:  "Thandi Mokoena",
			ParticipantEmail: "thandi@example.com",
			ClassName:        "U12 Swimming",
			BookingDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			PaymentStatus:    models.BookingPending,
			Amount:           decimal.RequireFromString("350"),
		}),
		confirmer: &stubConfirmer{res: payfast.ValidationValid},
		notes:     &recorder{},
		codec:     payfast.NewCodec(testPassphrase),
	}
	gw := NewPayFastGateway(testConfig(), h.confirmer)
	h.proc = NewProcessor(gw, h.payments, h.bookings, Options{
		Dedup:        dedup.NewMemory(time.Hour),
		Reporter:     h.notes,
		Sender:       h.notes,
		Organisation: "Lions Swim Academy",
	}, zap.NewNop())
	return h
}

func (h *harness) checkout(t *testing.T) *models.Payment {
	t.Helper()
	pay, _, err := h.proc.StartCheckout(context.Background(), 7)
	require.NoError(t, err)
	return pay
}

func (h *harness) itn(ref, pfID string, status payfast.Status, gross string) *payfast.Notification {
	fields := h.codec.Sign(payfast.Fields{
		"m_payment_id":   ref,
		"pf_payment_id":  pfID,
		"payment_status": string(status),
		"item_name":      "Lions Swim Academy - U12 Swimming",
		"amount_gross":   gross,
		"amount_fee":     "-8.05",
		"amount_net":     "341.95",
		"custom_str1":    "7",
		"name_first":     "Thandi",
		"name_last":      "Mokoena",
		"email_address":  "thandi@example.com",
		"merchant_id":    "10000100",
	})
	return &payfast.Notification{Raw: fields}
}

func TestStartCheckout(t *testing.T) {
	h := newHarness(t)

	pay, res, err := h.proc.StartCheckout(context.Background(), 7)
	require.NoError(t, err)

	stored := h.payments.get(pay.Reference)
	assert.Equal(t, models.PaymentPending, stored.Status)
	assert.True(t, decimal.RequireFromString("350").Equal(stored.Amount))
	assert.Equal(t, pay.Reference, h.bookings.get(7).PayfastPaymentID)

	require.NotNil(t, res)
	assert.Equal(t, pay.Reference, res.OrderID)
	assert.True(t, strings.HasPrefix(res.PaymentURL, payfast.Endpoint(true)+"?"))

	u, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "350.00", q.Get("amount"))
	assert.Equal(t, "Thandi", q.Get("name_first"))
	assert.Equal(t, "Mokoena", q.Get("name_last"))
	assert.Equal(t, "Lions Swim Academy - U12 Swimming", q.Get("item_name"))
	assert.Equal(t, "7", q.Get("custom_str1"))
	assert.Equal(t, "https://academy.test/payment/payfast/return?ref="+pay.Reference, q.Get("return_url"))
	assert.Empty(t, q.Get("passphrase"))

	fields := payfast.Fields{}
	for k := range q {
		fields[k] = q.Get(k)
	}
	assert.True(t, payfast.Verify(fields, testPassphrase))

	assert.Contains(t, res.FormHTML, `id="payfast-payment-form"`)
}

func TestStartCheckout_Rejections(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.proc.StartCheckout(context.Background(), 99)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	require.NoError(t, h.bookings.UpdatePaymentStatus(context.Background(), 7, models.BookingConfirmed))
	_, _, err = h.proc.StartCheckout(context.Background(), 7)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	h.bookings.rows[8] = &models.Booking{ID: 8, PaymentStatus: models.BookingPending}
	_, _, err = h.proc.StartCheckout(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNoAmount)
}

func TestHandleNotification_Complete(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	h.proc.Wait()

	stored := h.payments.get(pay.Reference)
	assert.Equal(t, models.PaymentComplete, stored.Status)
	assert.Equal(t, "1089250", stored.PfPaymentID)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Contains(t, stored.PayfastData, `"pf_payment_id":"1089250"`)
	assert.Equal(t, models.BookingConfirmed, h.bookings.get(7).PaymentStatus)

	reports, mails := h.notes.counts()
	assert.Equal(t, 1, reports)
	assert.Equal(t, 1, mails)
	assert.Equal(t, int32(1), h.confirmer.calls.Load())
}

func TestHandleNotification_Duplicate(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)
	n := h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00")

	out, err := h.proc.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	out, err = h.proc.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)
	h.proc.Wait()

	reports, _ := h.notes.counts()
	assert.Equal(t, 1, reports)
}

func TestHandleNotification_TerminalIsIdempotent(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	_, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusFailed, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
	h.proc.Wait()

	assert.Equal(t, models.PaymentComplete, h.payments.get(pay.Reference).Status)
	assert.Equal(t, models.BookingConfirmed, h.bookings.get(7).PaymentStatus)
}

func TestHandleNotification_Rejected(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	tampered := h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00")
	tampered.Raw["amount_gross"] = "1.00"
	out, err := h.proc.HandleNotification(context.Background(), tampered)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out)

	other := h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00")
	other.Raw["merchant_id"] = "10000999"
	other.Raw = h.codec.Sign(other.Raw)
	out, err = h.proc.HandleNotification(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out)

	assert.Equal(t, models.PaymentPending, h.payments.get(pay.Reference).Status)
	assert.Zero(t, h.confirmer.calls.Load())

	// A rejected delivery must not consume the dedup key.
	out, err = h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	h.proc.Wait()
}

func TestHandleNotification_AmountMismatch(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "35.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, out)

	stored := h.payments.get(pay.Reference)
	assert.Equal(t, models.PaymentFailed, stored.Status)
	assert.Equal(t, "amount_mismatch", stored.FailureReason)
	assert.Equal(t, models.BookingPending, h.bookings.get(7).PaymentStatus)
	assert.Zero(t, h.confirmer.calls.Load())
}

func TestHandleNotification_AmountEqualAsDecimal(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.0"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	h.proc.Wait()
}

func TestHandleNotification_GatewaySaysInvalid(t *testing.T) {
	h := newHarness(t)
	h.confirmer.set(payfast.ValidationInvalid, nil)
	pay := h.checkout(t)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out)
	assert.Equal(t, models.PaymentFailed, h.payments.get(pay.Reference).Status)
	assert.Equal(t, models.BookingPending, h.bookings.get(7).PaymentStatus)
}

func TestHandleNotification_UnconfirmedThenReconciled(t *testing.T) {
	h := newHarness(t)
	h.confirmer.set(payfast.ValidationInvalid, payfast.ErrUnconfirmed)
	pay := h.checkout(t)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnconfirmed, out)

	stored := h.payments.get(pay.Reference)
	assert.Equal(t, models.PaymentUnconfirmed, stored.Status)
	assert.Equal(t, models.BookingPending, h.bookings.get(7).PaymentStatus)

	// Still down: nothing resolves.
	n, err := h.proc.Reconcile(context.Background(), 50)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.PaymentUnconfirmed, h.payments.get(pay.Reference).Status)

	h.confirmer.set(payfast.ValidationValid, nil)
	n, err = h.proc.Reconcile(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	h.proc.Wait()

	assert.Equal(t, models.PaymentComplete, h.payments.get(pay.Reference).Status)
	assert.Equal(t, models.BookingConfirmed, h.bookings.get(7).PaymentStatus)
}

func TestHandleNotification_StatusMapping(t *testing.T) {
	cases := []struct {
		status      payfast.Status
		wantPayment string
		wantBooking string
	}{
		{payfast.StatusFailed, models.PaymentFailed, models.BookingFailed},
		{payfast.StatusCancelled, models.PaymentCancelled, models.BookingPending},
		{payfast.StatusPending, models.PaymentPending, models.BookingPending},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			h := newHarness(t)
			pay := h.checkout(t)

			out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", tc.status, "350.00"))
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, out)
			assert.Equal(t, tc.wantPayment, h.payments.get(pay.Reference).Status)
			assert.Equal(t, tc.wantBooking, h.bookings.get(7).PaymentStatus)

			reports, _ := h.notes.counts()
			assert.Zero(t, reports)
		})
	}
}

func TestHandleNotification_UnknownPayment(t *testing.T) {
	h := newHarness(t)

	out, err := h.proc.HandleNotification(context.Background(), h.itn("no-such-ref", "1", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, out)
}

func TestHandleNotification_StoreErrorAllowsRedelivery(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)
	n := h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00")

	h.payments.findErr = errDB
	_, err := h.proc.HandleNotification(context.Background(), n)
	assert.ErrorIs(t, err, errDB)

	h.payments.findErr = nil
	out, err := h.proc.HandleNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	h.proc.Wait()
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	changed, err := h.proc.Cancel(context.Background(), pay.Reference)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.PaymentCancelled, h.payments.get(pay.Reference).Status)

	changed, err = h.proc.Cancel(context.Background(), pay.Reference)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHandleNotification_CompleteAfterCancel(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	_, err := h.proc.Cancel(context.Background(), pay.Reference)
	require.NoError(t, err)

	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	h.proc.Wait()

	assert.Equal(t, models.PaymentComplete, h.payments.get(pay.Reference).Status)
	assert.Equal(t, models.BookingConfirmed, h.bookings.get(7).PaymentStatus)
	reports, _ := h.notes.counts()
	assert.Equal(t, 1, reports)
}

func TestHandleNotification_CompleteAfterExpiry(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	h.proc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err := h.proc.ExpireStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, models.PaymentExpired, h.payments.get(pay.Reference).Status)

	// only money taken can reopen an abandoned payment
	out, err := h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusFailed, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)

	out, err = h.proc.HandleNotification(context.Background(), h.itn(pay.Reference, "1089250", payfast.StatusComplete, "350.00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	h.proc.Wait()

	assert.Equal(t, models.PaymentComplete, h.payments.get(pay.Reference).Status)
	assert.Equal(t, models.BookingConfirmed, h.bookings.get(7).PaymentStatus)
}

func TestExpireStale(t *testing.T) {
	h := newHarness(t)
	pay := h.checkout(t)

	n, err := h.proc.ExpireStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.proc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	n, err = h.proc.ExpireStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.PaymentExpired, h.payments.get(pay.Reference).Status)
}

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"academypay/internal/metrics"
	"academypay/internal/models"
	"academypay/internal/notify"
	"academypay/internal/payfast"
	"academypay/internal/pkg/dedup"
	"academypay/internal/pkg/utils"
	"academypay/internal/repository"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrAlreadyPaid     = errors.New("booking is already paid")
	ErrNoAmount        = errors.New("booking has no amount due")
)

// Outcome is what happened to an inbound notification.
type Outcome string

const (
	OutcomeRejected    Outcome = "rejected"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeUnknown     Outcome = "unknown_payment"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeMismatch    Outcome = "amount_mismatch"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeUnconfirmed Outcome = "unconfirmed"
	OutcomeApplied     Outcome = "applied"
)

// PaymentStore is the subset of the payment repository the processor needs.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindByStatus(ctx context.Context, status string, limit int) ([]models.Payment, error)
	Transition(ctx context.Context, reference string, from []string, updates map[string]interface{}) (bool, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// BookingStore is the subset of the booking repository the processor needs.
type BookingStore interface {
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	SetPaymentReference(ctx context.Context, id uint, reference string) error
	UpdatePaymentStatus(ctx context.Context, id uint, status string) error
}

// Processor drives a payment from checkout to a terminal state.
type Processor struct {
	gateway      NotificationGateway
	payments     PaymentStore
	bookings     BookingStore
	dedup        dedup.Deduper
	reporter     notify.Reporter
	sender       notify.Sender
	organisation string
	logger       *zap.Logger
	now          func() time.Time
	wg           sync.WaitGroup
}

// Options carries the optional collaborators of a Processor.
type Options struct {
	Dedup        dedup.Deduper
	Reporter     notify.Reporter
	Sender       notify.Sender
	Organisation string
}

func NewProcessor(gateway NotificationGateway, payments PaymentStore, bookings BookingStore, opts Options, logger *zap.Logger) *Processor {
	p := &Processor{
		gateway:      gateway,
		payments:     payments,
		bookings:     bookings,
		dedup:        opts.Dedup,
		reporter:     opts.Reporter,
		sender:       opts.Sender,
		organisation: opts.Organisation,
		logger:       logger,
		now:          time.Now,
	}
	if p.dedup == nil {
		p.dedup = dedup.NewMemory(24 * time.Hour)
	}
	if p.reporter == nil {
		p.reporter = notify.Nop{}
	}
	if p.sender == nil {
		p.sender = notify.Nop{}
	}
	if p.organisation == "" {
		p.organisation = "Academy"
	}
	return p
}

// StartCheckout creates a pending payment for a booking and returns the
// gateway redirect.
func (p *Processor) StartCheckout(ctx context.Context, bookingID uint) (*models.Payment, *PaymentResult, error) {
	booking, err := p.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrBookingNotFound
		}
		return nil, nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}
	if booking.PaymentStatus == models.BookingConfirmed {
		return nil, nil, ErrAlreadyPaid
	}
	if !booking.Amount.IsPositive() {
		return nil, nil, ErrNoAmount
	}

	pay := &models.Payment{
		BookingID: booking.ID,
		Reference: utils.GeneratePaymentReference(),
		Amount:    booking.Amount,
		Currency:  "ZAR",
		Status:    models.PaymentPending,
	}
	if err := p.payments.Create(ctx, pay); err != nil {
		return nil, nil, fmt.Errorf("create payment: %w", err)
	}
	if err := p.bookings.SetPaymentReference(ctx, booking.ID, pay.Reference); err != nil {
		return nil, nil, fmt.Errorf("stamp booking %d: %w", booking.ID, err)
	}

	first, last := SplitName(booking.ParticipantName)
	item := booking.ClassName
	if item == "" {
		item = "Class booking"
	}
	co := &Checkout{
		Reference:       pay.Reference,
		Amount:          pay.Amount,
		ItemName:        fmt.Sprintf("%s - %s", p.organisation, item),
		ItemDescription: fmt.Sprintf("Booking #%d on %s", booking.ID, booking.BookingDate.Format("2006-01-02")),
		NameFirst:       first,
		NameLast:        last,
		Email:           booking.ParticipantEmail,
	}
	co.CustomStr[0] = fmt.Sprint(booking.ID)

	res, err := p.gateway.CreatePayment(ctx, co)
	if err != nil {
		return nil, nil, err
	}

	p.logger.Info("Checkout started",
		zap.Uint("booking_id", booking.ID),
		zap.String("reference", pay.Reference),
		zap.String("amount", utils.FormatAmount(pay.Amount)),
	)
	return pay, res, nil
}

// Cancel marks a still-pending payment as cancelled by the payer.
func (p *Processor) Cancel(ctx context.Context, reference string) (bool, error) {
	return p.payments.Transition(ctx, reference, []string{models.PaymentPending}, map[string]interface{}{
		"status":         models.PaymentCancelled,
		"failure_reason": "cancelled by payer",
	})
}

// HandleNotification authenticates and applies an inbound notification.
// A returned error means the delivery should be retried by the gateway.
func (p *Processor) HandleNotification(ctx context.Context, n *payfast.Notification) (Outcome, error) {
	outcome, err := p.handleNotification(ctx, n)
	metrics.Notifications.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (p *Processor) handleNotification(ctx context.Context, n *payfast.Notification) (Outcome, error) {
	if !p.gateway.Authenticate(n) {
		p.logger.Warn("Notification signature mismatch", zap.String("m_payment_id", n.MPaymentID()))
		return OutcomeRejected, nil
	}
	if n.MerchantID() != p.gateway.MerchantID() {
		p.logger.Warn("Notification for another merchant", zap.String("merchant_id", n.MerchantID()))
		return OutcomeRejected, nil
	}

	key := n.PFPaymentID() + ":" + string(n.Status())
	dup, err := p.dedup.Seen(ctx, key)
	if err != nil {
		p.logger.Warn("Dedup store unavailable", zap.Error(err))
	}
	if dup {
		p.logger.Info("Duplicate notification dropped", zap.String("key", key))
		return OutcomeDuplicate, nil
	}

	outcome, err := p.process(ctx, n)
	if err != nil {
		if ferr := p.dedup.Forget(ctx, key); ferr != nil {
			p.logger.Warn("Failed to release dedup key", zap.String("key", key), zap.Error(ferr))
		}
	}
	return outcome, err
}

func (p *Processor) process(ctx context.Context, n *payfast.Notification) (Outcome, error) {
	pay, err := p.payments.FindByReference(ctx, n.MPaymentID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.Warn("Notification for unknown payment", zap.String("m_payment_id", n.MPaymentID()))
			return OutcomeUnknown, nil
		}
		return OutcomeIgnored, fmt.Errorf("load payment %s: %w", n.MPaymentID(), err)
	}
	if pay.IsTerminal() && !(pay.IsAbandoned() && n.Status() == payfast.StatusComplete) {
		return OutcomeIgnored, nil
	}

	raw, err := json.Marshal(n.Raw)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("encode notification: %w", err)
	}

	gross, err := utils.ParseAmount(n.AmountGross())
	if err != nil || !gross.Equal(pay.Amount) {
		p.logger.Warn("Notification amount mismatch",
			zap.String("reference", pay.Reference),
			zap.String("expected", utils.FormatAmount(pay.Amount)),
			zap.String("received", n.AmountGross()),
		)
		if _, err := p.fail(ctx, pay, n, raw, string(OutcomeMismatch)); err != nil {
			return OutcomeMismatch, err
		}
		return OutcomeMismatch, nil
	}

	return p.confirmAndApply(ctx, pay, n, raw)
}

// confirmAndApply asks the gateway to confirm the notification and applies it.
func (p *Processor) confirmAndApply(ctx context.Context, pay *models.Payment, n *payfast.Notification, raw []byte) (Outcome, error) {
	res, err := p.gateway.VerifyPayment(ctx, n.PFPaymentID())
	if err != nil {
		metrics.Confirmations.WithLabelValues("error").Inc()
		p.logger.Warn("Payment confirmation unavailable",
			zap.String("reference", pay.Reference),
			zap.Error(err),
		)
		_, terr := p.payments.Transition(ctx, pay.Reference, movableFrom(n), map[string]interface{}{
			"status":             models.PaymentUnconfirmed,
			"payfast_payment_id": n.PFPaymentID(),
			"payfast_data":       string(raw),
		})
		return OutcomeUnconfirmed, terr
	}
	if !res.Verified {
		metrics.Confirmations.WithLabelValues("invalid").Inc()
		if _, err := p.fail(ctx, pay, n, raw, res.Message); err != nil {
			return OutcomeInvalid, err
		}
		return OutcomeInvalid, nil
	}
	metrics.Confirmations.WithLabelValues("valid").Inc()

	return p.apply(ctx, pay, n, raw)
}

func (p *Processor) apply(ctx context.Context, pay *models.Payment, n *payfast.Notification, raw []byte) (Outcome, error) {
	updates := map[string]interface{}{
		"payfast_payment_id": n.PFPaymentID(),
		"payfast_data":       string(raw),
	}

	var bookingStatus string
	switch n.Status() {
	case payfast.StatusComplete:
		updates["status"] = models.PaymentComplete
		updates["processed_at"] = p.now()
		updates["failure_reason"] = ""
		bookingStatus = models.BookingConfirmed
	case payfast.StatusFailed:
		updates["status"] = models.PaymentFailed
		updates["failure_reason"] = "declined by gateway"
		bookingStatus = models.BookingFailed
	case payfast.StatusCancelled:
		updates["status"] = models.PaymentCancelled
		updates["failure_reason"] = "cancelled at gateway"
	case payfast.StatusPending:
		updates["status"] = models.PaymentPending
	default:
		p.logger.Warn("Unknown payment status", zap.String("status", string(n.Status())))
		return OutcomeIgnored, nil
	}

	changed, err := p.payments.Transition(ctx, pay.Reference, movableFrom(n), updates)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("update payment %s: %w", pay.Reference, err)
	}
	if !changed {
		return OutcomeIgnored, nil
	}
	if pay.IsAbandoned() {
		p.logger.Warn("Payment settled after it was abandoned",
			zap.String("reference", pay.Reference),
			zap.String("previous_status", pay.Status),
		)
	}

	if bookingStatus != "" {
		if err := p.bookings.UpdatePaymentStatus(ctx, pay.BookingID, bookingStatus); err != nil {
			return OutcomeApplied, fmt.Errorf("update booking %d: %w", pay.BookingID, err)
		}
	}

	p.logger.Info("Payment updated",
		zap.String("reference", pay.Reference),
		zap.String("pf_payment_id", n.PFPaymentID()),
		zap.String("status", updates["status"].(string)),
		zap.String("amount_gross", n.AmountGross()),
		zap.String("amount_fee", n.AmountFee()),
		zap.String("amount_net", n.AmountNet()),
	)

	if n.Status() == payfast.StatusComplete {
		p.announce(pay, n.PFPaymentID())
	}
	return OutcomeApplied, nil
}

func (p *Processor) fail(ctx context.Context, pay *models.Payment, n *payfast.Notification, raw []byte, reason string) (bool, error) {
	changed, err := p.payments.Transition(ctx, pay.Reference, movableFrom(n), map[string]interface{}{
		"status":             models.PaymentFailed,
		"failure_reason":     reason,
		"payfast_payment_id": n.PFPaymentID(),
		"payfast_data":       string(raw),
	})
	if err != nil {
		return false, fmt.Errorf("fail payment %s: %w", pay.Reference, err)
	}
	return changed, nil
}

// movableFrom lists the payment states n may move a payment out of. Money
// taken after a cancel or expiry still settles the payment.
func movableFrom(n *payfast.Notification) []string {
	if n.Status() == payfast.StatusComplete {
		return models.SettleablePaymentStatuses
	}
	return models.OpenPaymentStatuses
}

// announce sends the admin report and the payer receipt in the background.
func (p *Processor) announce(pay *models.Payment, pfPaymentID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		booking, err := p.bookings.FindByID(ctx, pay.BookingID)
		if err != nil {
			p.logger.Error("Failed to load booking for receipt", zap.Uint("booking_id", pay.BookingID), zap.Error(err))
			return
		}

		if err := p.reporter.Report(ctx, notify.PaymentReport(pay, booking, pfPaymentID)); err != nil {
			p.logger.Error("Failed to send payment report", zap.Error(err))
		}

		if booking.ParticipantEmail == "" {
			return
		}
		subject, body := notify.PaymentReceipt(pay, booking)
		if err := p.sender.Send(ctx, booking.ParticipantEmail, subject, body); err != nil {
			p.logger.Error("Failed to send receipt", zap.String("reference", pay.Reference), zap.Error(err))
		}
	}()
}

// Wait blocks until background notifications have been sent.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Reconcile retries confirmation for payments whose notification could not
// be confirmed. It returns how many payments left the unconfirmed state.
func (p *Processor) Reconcile(ctx context.Context, limit int) (int, error) {
	pending, err := p.payments.FindByStatus(ctx, models.PaymentUnconfirmed, limit)
	if err != nil {
		return 0, fmt.Errorf("list unconfirmed payments: %w", err)
	}

	resolved := 0
	for i := range pending {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		pay := &pending[i]

		var fields payfast.Fields
		if err := json.Unmarshal([]byte(pay.PayfastData), &fields); err != nil || len(fields) == 0 {
			p.logger.Warn("Unconfirmed payment has no stored notification", zap.String("reference", pay.Reference))
			continue
		}
		n := &payfast.Notification{Raw: fields}

		outcome, err := p.confirmAndApply(ctx, pay, n, []byte(pay.PayfastData))
		if err != nil {
			p.logger.Error("Reconcile failed", zap.String("reference", pay.Reference), zap.Error(err))
			continue
		}
		if outcome == OutcomeApplied || outcome == OutcomeInvalid {
			resolved++
		}
	}
	return resolved, nil
}

// ExpireStale expires pending payments older than ttl.
func (p *Processor) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := p.payments.ExpirePending(ctx, p.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}
	return n, nil
}

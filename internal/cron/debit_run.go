package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"academypay/internal/debitorder"
	"academypay/internal/metrics"
	"academypay/internal/models"
)

const (
	debitBatchSize = 50
	// maxDebitBatches bounds one run if mandates keep coming back due.
	maxDebitBatches = 100
)

func (s *Scheduler) runDebitOrders() {
	defer s.recoverFromPanic("runDebitOrders")

	if s.deps.Mandates == nil || s.deps.Debits == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	processed, failed := s.processDueMandates(ctx)
	if processed > 0 {
		s.logger.Info("Debit orders processed", zap.Int("processed", processed), zap.Int("failed", failed))
	}
}

// processDueMandates debits every due mandate in batches. Each mandate is
// advanced past now whatever the outcome, so a run always drains the queue.
// A mandate is debited at most once per run.
func (s *Scheduler) processDueMandates(ctx context.Context) (processed, failed int) {
	done := make(map[uint]struct{})
	for batch := 0; batch < maxDebitBatches; batch++ {
		mandates, err := s.deps.Mandates.FindDue(ctx, s.now(), debitBatchSize)
		if err != nil {
			s.logger.Error("Failed to list due mandates", zap.Error(err))
			return processed, failed
		}

		fresh := 0
		for i := range mandates {
			if _, seen := done[mandates[i].ID]; seen {
				continue
			}
			done[mandates[i].ID] = struct{}{}
			fresh++

			ok, err := s.debitMandate(ctx, &mandates[i])
			if err != nil {
				s.logger.Error("Debit run aborted",
					zap.String("mandate", mandates[i].Reference),
					zap.Error(err),
				)
				return processed, failed
			}
			processed++
			if !ok {
				failed++
			}
		}

		if len(mandates) < debitBatchSize || fresh == 0 {
			return processed, failed
		}
	}

	s.logger.Warn("Debit run stopped at batch limit", zap.Int("processed", processed))
	return processed, failed
}

// debitMandate submits one debit and records it. It returns false when the
// bank declined. A non-nil error means nothing was recorded.
func (s *Scheduler) debitMandate(ctx context.Context, m *models.DebitOrderMandate) (bool, error) {
	now := s.now()
	res, err := s.deps.Debits.Debit(ctx, debitorder.Request{
		MandateReference: m.Reference,
		AccountNumber:    m.AccountNumber,
		BranchCode:       m.BranchCode,
		Amount:           m.MaxAmount,
		TransactionType:  debitorder.TxMembershipPayment,
		Description:      "Recurring " + m.Frequency + " debit",
	})
	if err != nil {
		metrics.DebitRuns.WithLabelValues("error").Inc()
		return false, err
	}

	tx := &models.DebitOrderTransaction{
		MandateID:       m.ID,
		Reference:       res.Reference,
		Amount:          m.MaxAmount,
		TransactionType: debitorder.TxMembershipPayment,
		Status:          models.TransactionSuccessful,
		Description:     "Recurring " + m.Frequency + " debit",
		ProcessedAt:     now,
	}
	if !res.Success {
		tx.Reference = debitorder.TransactionReference(now)
		tx.Status = models.TransactionFailed
		tx.FailureReason = res.FailureReason
	}

	next := debitorder.NextProcessDateAfter(m.NextProcessDate, m.Frequency, now)
	if err := s.deps.Mandates.RecordRun(ctx, tx, next); err != nil {
		metrics.DebitRuns.WithLabelValues("error").Inc()
		return false, err
	}

	if !res.Success {
		metrics.DebitRuns.WithLabelValues("declined").Inc()
		s.logger.Warn("Debit declined",
			zap.String("mandate", m.Reference),
			zap.String("account", m.MaskedAccount()),
			zap.String("reason", res.FailureReason),
		)
		return false, nil
	}
	metrics.DebitRuns.WithLabelValues("success").Inc()

	if m.PayerEmail != "" {
		r := debitorder.ReceiptFor(m.MaxAmount.StringFixed(2), s.cfg.Payment.Organisation, tx.TransactionType, now)
		if err := s.deps.Sender.Send(ctx, m.PayerEmail, r.Subject, r.Body); err != nil {
			s.logger.Error("Failed to send debit receipt", zap.String("mandate", m.Reference), zap.Error(err))
		}
	}
	return true, nil
}

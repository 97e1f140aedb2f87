package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"academypay/internal/config"
	"academypay/internal/debitorder"
	"academypay/internal/models"
	"academypay/internal/notify"
)

// PaymentJobs is the payment maintenance the scheduler triggers.
type PaymentJobs interface {
	Reconcile(ctx context.Context, limit int) (int, error)
	ExpireStale(ctx context.Context, ttl time.Duration) (int64, error)
}

// PaymentStats feeds the daily report.
type PaymentStats interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// MandateQueue lists due mandates and records their runs.
type MandateQueue interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.DebitOrderMandate, error)
	RecordRun(ctx context.Context, tx *models.DebitOrderTransaction, next time.Time) error
}

// Deps bundles what the cron jobs act on.
type Deps struct {
	Payments PaymentJobs
	Stats    PaymentStats
	Mandates MandateQueue
	Debits   debitorder.Processor
	Reporter notify.Reporter
	Sender   notify.Sender
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new cron scheduler.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Scheduler {
	if deps.Reporter == nil {
		deps.Reporter = notify.Nop{}
	}
	if deps.Sender == nil {
		deps.Sender = notify.Nop{}
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		// Unconfirmed notifications - every 5 minutes
		{"0 */5 * * * *", "reconcile unconfirmed payments", s.reconcileUnconfirmed},
		// Abandoned checkouts - every hour
		{"0 0 * * * *", "expire pending payments", s.expirePending},
		// Debit orders - daily at 2 AM
		{"0 0 2 * * *", "run debit orders", s.runDebitOrders},
		// Daily status report - at 23:45
		{"0 45 23 * * *", "daily status report", s.dailyStatusReport},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			s.logger.Debug("Running: " + job.name)
			job.run()
		}); err != nil {
			return fmt.Errorf("schedule %q: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ── Reconcile unconfirmed payments ────────────────────────────────────

func (s *Scheduler) reconcileUnconfirmed() {
	defer s.recoverFromPanic("reconcileUnconfirmed")

	if s.deps.Payments == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	resolved, err := s.deps.Payments.Reconcile(ctx, s.cfg.Payment.ReconcileBatch)
	if err != nil {
		s.logger.Error("Reconcile failed", zap.Error(err))
		return
	}
	if resolved > 0 {
		s.logger.Info("Reconciled payments", zap.Int("resolved", resolved))
	}
}

// ── Expire pending payments ───────────────────────────────────────────

func (s *Scheduler) expirePending() {
	defer s.recoverFromPanic("expirePending")

	if s.deps.Payments == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.deps.Payments.ExpireStale(ctx, s.cfg.Payment.PendingTTL)
	if err != nil {
		s.logger.Error("Payment expire failed", zap.Error(err))
		return
	}

	s.logger.Debug("Payment expire completed", zap.Int64("expired", n))
}

// ── Daily status report ───────────────────────────────────────────────

func (s *Scheduler) dailyStatusReport() {
	defer s.recoverFromPanic("dailyStatusReport")

	if s.deps.Stats == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	counts, err := s.deps.Stats.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to build daily report", zap.Error(err))
		return
	}

	if err := s.deps.Reporter.Report(ctx, statusReport(s.now(), counts)); err != nil {
		s.logger.Error("Failed to send daily report", zap.Error(err))
	}
}

func statusReport(day time.Time, counts map[string]int64) string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Payments report</b> %s\n", day.Format("2006-01-02"))
	if len(statuses) == 0 {
		b.WriteString("\nNo payments yet.")
	}
	for _, status := range statuses {
		fmt.Fprintf(&b, "\n%s: %d", status, counts[status])
	}
	return b.String()
}

// ── Helpers ───────────────────────────────────────────────────────────

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}

package debitorder

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Request is a single debit submitted against a mandate.
type Request struct {
	MandateReference string
	AccountNumber    string
	BranchCode       string
	Amount           decimal.Decimal
	TransactionType  string
	Description      string
}

// Result is the bank's answer to a debit.
type Result struct {
	Success       bool
	Reference     string
	FailureReason string
}

// Processor submits debits to a bank.
type Processor interface {
	Debit(ctx context.Context, req Request) (Result, error)
}

// FailureReasons are the outcomes reported for declined debits.
var FailureReasons = []string{
	"Insufficient funds",
	"Account not found",
	"Account blocked",
	"Bank system unavailable",
	"Invalid account details",
}

// Simulator approves roughly 90% of debits. It stands in until a bank
// integration exists.
type Simulator struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	SuccessRate float64
	now         func() time.Time
}

func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rnd:         rand.New(rand.NewSource(seed)),
		SuccessRate: 0.9,
		now:         time.Now,
	}
}

func (s *Simulator) Debit(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	roll := s.rnd.Float64()
	pick := s.rnd.Intn(len(FailureReasons))
	s.mu.Unlock()

	if roll < s.SuccessRate {
		return Result{Success: true, Reference: TransactionReference(s.now())}, nil
	}
	return Result{Success: false, FailureReason: FailureReasons[pick]}, nil
}

package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"academypay/internal/models"
	"academypay/internal/payfast"
	"academypay/internal/repository"
)

type memPayments struct {
	mu      sync.Mutex
	rows    map[string]*models.Payment
	nextID  uint
	findErr error
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[string]*models.Payment)}
}

func (m *memPayments) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	m.rows[p.Reference] = &cp
	return nil
}

func (m *memPayments) FindByReference(_ context.Context, ref string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.rows[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPayments) FindByStatus(_ context.Context, status string, limit int) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.rows {
		if p.Status == status && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPayments) Transition(_ context.Context, ref string, from []string, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[ref]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if p.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			p.Status = v.(string)
		case "failure_reason":
			p.FailureReason = v.(string)
		case "payfast_payment_id":
			p.PfPaymentID = v.(string)
		case "payfast_data":
			p.PayfastData = v.(string)
		case "processed_at":
			t := v.(time.Time)
			p.ProcessedAt = &t
		}
	}
	return true, nil
}

func (m *memPayments) ExpirePending(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.rows {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff) {
			p.Status = models.PaymentExpired
			n++
		}
	}
	return n, nil
}

func (m *memPayments) get(ref string) models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[ref]
}

type memBookings struct {
	mu   sync.Mutex
	rows map[uint]*models.Booking
}

func newMemBookings(bs ...models.Booking) *memBookings {
	m := &memBookings{rows: make(map[uint]*models.Booking)}
	for i := range bs {
		b := bs[i]
		m.rows[b.ID] = &b
	}
	return m
}

func (m *memBookings) FindByID(_ context.Context, id uint) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) SetPaymentReference(_ context.Context, id uint, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PayfastPaymentID = ref
	return nil
}

func (m *memBookings) UpdatePaymentStatus(_ context.Context, id uint, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PaymentStatus = status
	return nil
}

func (m *memBookings) get(id uint) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

type stubConfirmer struct {
	mu    sync.Mutex
	res   payfast.Validation
	err   error
	calls atomic.Int32
}

func (s *stubConfirmer) set(res payfast.Validation, err error) {
	s.mu.Lock()
	s.res, s.err = res, err
	s.mu.Unlock()
}

func (s *stubConfirmer) Validate(_ context.Context, _ string) (payfast.Validation, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res, s.err
}

type recorder struct {
	mu      sync.Mutex
	reports []string
	mails   []string
}

func (r *recorder) Report(_ context.Context, text string) error {
	r.mu.Lock()
	r.reports = append(r.reports, text)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Send(_ context.Context, to, subject, _ string) error {
	r.mu.Lock()
	r.mails = append(r.mails, to+"|"+subject)
	r.mu.Unlock()
	return nil
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports), len(r.mails)
}

var errDB = errors.New("db is down")

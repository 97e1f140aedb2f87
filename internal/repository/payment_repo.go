package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"academypay/internal/models"
)

// PaymentRepository handles gateway payment rows.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindAll returns payments with pagination and search.
func (r *PaymentRepository) FindAll(ctx context.Context, limit, page int, query string) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Payment{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("reference LIKE ? OR payfast_payment_id LIKE ? OR status LIKE ?",
			search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// FindByReference returns a payment by its m_payment_id.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

// FindByStatus returns up to limit payments in status, oldest first.
func (r *PaymentRepository) FindByStatus(ctx context.Context, status string, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("updated_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// Create creates a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// Transition applies updates only while the payment is in one of the from
// states. It reports whether a row changed, so concurrent notifications for the
// same payment apply a terminal status at most once.
func (r *PaymentRepository) Transition(ctx context.Context, reference string, from []string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("reference = ? AND status IN ?", reference, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpirePending marks pending payments created before cutoff as expired.
func (r *PaymentRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", models.PaymentPending, cutoff).
		Updates(map[string]interface{}{
			"status":         models.PaymentExpired,
			"failure_reason": "checkout abandoned",
		})
	return res.RowsAffected, res.Error
}

// CountByStatus returns the number of payments per status.
func (r *PaymentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

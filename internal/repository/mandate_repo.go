package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"academypay/internal/models"
)

// MandateRepository handles debit-order mandates and their transactions.
type MandateRepository struct {
	db *gorm.DB
}

func NewMandateRepository(db *gorm.DB) *MandateRepository {
	return &MandateRepository{db: db}
}

// Create creates a new mandate.
func (r *MandateRepository) Create(ctx context.Context, m *models.DebitOrderMandate) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID returns a mandate by ID.
func (r *MandateRepository) FindByID(ctx context.Context, id uint) (*models.DebitOrderMandate, error) {
	var m models.DebitOrderMandate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// FindByUserID returns all mandates of a user, newest first.
func (r *MandateRepository) FindByUserID(ctx context.Context, userID uint) ([]models.DebitOrderMandate, error) {
	var mandates []models.DebitOrderMandate
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&mandates).Error
	return mandates, err
}

// FindDue returns active mandates whose next process date is not after now.
func (r *MandateRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.DebitOrderMandate, error) {
	var mandates []models.DebitOrderMandate
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_process_date <= ?", models.MandateActive, now).
		Where("end_date IS NULL OR end_date >= ?", now).
		Order("next_process_date ASC").
		Limit(limit).
		Find(&mandates).Error
	return mandates, err
}

// UpdateStatus sets the mandate status.
func (r *MandateRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.DebitOrderMandate{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRun stores a transaction and advances the mandate in one unit.
func (r *MandateRepository) RecordRun(ctx context.Context, tx *models.DebitOrderTransaction, next time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(tx).Error; err != nil {
			return err
		}
		return db.Model(&models.DebitOrderMandate{}).
			Where("id = ?", tx.MandateID).
			Update("next_process_date", next).Error
	})
}

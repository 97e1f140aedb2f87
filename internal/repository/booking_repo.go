package repository

import (
	"context"

	"gorm.io/gorm"

	"academypay/internal/models"
)

// BookingRepository handles booking rows touched by the payment flow.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID returns a booking by ID.
func (r *BookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

// SetPaymentReference stamps the booking with the reference of its latest checkout.
func (r *BookingRepository) SetPaymentReference(ctx context.Context, id uint, reference string) error {
	return r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payfast_payment_id": reference,
			"payment_method":     "payfast",
		}).Error
}

// UpdatePaymentStatus sets the booking's payment status.
func (r *BookingRepository) UpdatePaymentStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}

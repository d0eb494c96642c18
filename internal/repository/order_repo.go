package repository

import (
	"context"
	"errors"
	"time"

	"fundhub/internal/domain"
	"fundhub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// GetByID loads the order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// RefundUpdate is the set of refund fields written after a refund credit.
type RefundUpdate struct {
	Amount     decimal.Decimal
	Reason     string
	RefundedBy string
	RefundedAt time.Time
	Full       bool
}

// ApplyRefund marks the order refunded. It reports false when the order was
// already marked, so exactly one caller completes a given refund.
func (r *OrderRepository) ApplyRefund(ctx context.Context, orderID string, u RefundUpdate) (bool, error) {
	updates := map[string]interface{}{
		"refund_status": domain.RefundStatusRefunded,
		"refund_amount": u.Amount.Round(2),
		"refund_reason": u.Reason,
		"refunded_by":   u.RefundedBy,
		"refunded_at":   u.RefundedAt,
	}
	if u.Full {
		updates["status"] = domain.OrderStatusRefunded
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND refund_status <> ?", orderID, domain.RefundStatusRefunded).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Update("status", status).Error
}

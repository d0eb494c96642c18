package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundhub/internal/domain"
	"fundhub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRepository is append-only apart from the pending status
// transitions.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

// Create inserts t. A reused idempotency reference yields
// domain.ErrDuplicateReference.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	if t.Reference != nil {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("reference = ?", *t.Reference).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrDuplicateReference
		}
	}
	err := r.db.WithContext(ctx).Create(t).Error
	if isDuplicateKey(err) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) FindByOrderAndType(ctx context.Context, orderID, txnType string) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, txnType).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *TransactionRepository) FindByOrderProductAndType(ctx context.Context, orderID, productID, txnType string) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ? AND type = ?", orderID, productID, txnType).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// FindReversalOf returns the reversal that references originalID, or nil.
func (r *TransactionRepository) FindReversalOf(ctx context.Context, originalID string) (*models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).
		Where("referenced_transaction_id = ? AND type IN ?", originalID,
			[]string{domain.TxnRevenueReversal, domain.TxnCommissionReversal}).
		Limit(1).
		Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListByUser returns a page of the user's history, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// ListUsersWithPendingExpired returns users owning pending rows whose window
// closed at or before now.
func (r *TransactionRepository) ListUsersWithPendingExpired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ? AND cancellation_expiry_time <= ?", domain.TxnStatusPendingConfirmation, now).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *TransactionRepository) ListPendingExpired(ctx context.Context, userID string, now time.Time) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND cancellation_expiry_time <= ?", domain.TxnStatusPendingConfirmation, now)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var list []models.Transaction
	err := q.Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *TransactionRepository) MarkPending(ctx context.Context, id string, expiry time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                   domain.TxnStatusPendingConfirmation,
			"cancellation_period":      true,
			"cancellation_expiry_time": expiry,
		}).Error
}

// PromoteExpired flips the user's expired pending rows to confirmed.
func (r *TransactionRepository) PromoteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND status = ? AND cancellation_expiry_time <= ?", userID, domain.TxnStatusPendingConfirmation, now).
		Update("status", domain.TxnStatusConfirmed)
	return res.RowsAffected, res.Error
}

// MarkReversed moves a still-pending row to reversed. Returns false if the
// row is no longer pending.
func (r *TransactionRepository) MarkReversed(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxnStatusPendingConfirmation).
		Update("status", domain.TxnStatusReversed)
	return res.RowsAffected == 1, res.Error
}

// SumByUser is the reconciliation total; it must equal the wallet balance.
func (r *TransactionRepository) SumByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Scan(&row).Error
	return row.Total.Round(2), err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}

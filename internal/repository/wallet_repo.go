package repository

import (
	"context"
	"errors"
	"time"

	"fundhub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrWalletNotVisible means the wallet row was created concurrently but the
// current transaction's snapshot cannot see it yet. Retrying in a fresh
// transaction resolves it.
var ErrWalletNotVisible = errors.New("wallet created concurrently, not visible in this snapshot")

type WalletRepository struct {
	db       *gorm.DB
	currency string
}

func NewWalletRepository(db *gorm.DB, currency string) *WalletRepository {
	return &WalletRepository{db: db, currency: currency}
}

// WithTx returns a copy bound to an open transaction.
func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx, currency: r.currency}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, userID string, now time.Time) (*models.Wallet, error) {
	w, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &models.Wallet{UserID: userID, Balance: decimal.Zero, Currency: r.currency, LastUpdated: now}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(w).Error
	if err != nil {
		return nil, err
	}
	// a concurrent creator may have won; read back whichever row exists
	w, err = r.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotVisible
	}
	return w, err
}

// CompareAndSwapBalance writes balance only if the wallet still has the
// version that was read. ok=false means another writer got there first.
func (r *WalletRepository) CompareAndSwapBalance(ctx context.Context, w *models.Wallet, balance decimal.Decimal, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND version = ?", w.UserID, w.Version).
		Updates(map[string]interface{}{
			"balance":      balance.Round(2),
			"version":      gorm.Expr("version + 1"),
			"last_updated": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetLastInterestDate claims date for the wallet. Returns false when the
// wallet already accrued interest for that date.
func (r *WalletRepository) SetLastInterestDate(ctx context.Context, userID, date string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND (last_interest_date IS NULL OR last_interest_date <> ?)", userID, date).
		Update("last_interest_date", date)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListUserIDsWithBalanceAtLeast feeds the interest sweep.
func (r *WalletRepository) ListUserIDsWithBalanceAtLeast(ctx context.Context, min decimal.Decimal) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("balance >= ?", min).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

package repository

import (
	"context"
	"time"

	"fundhub/internal/domain"
	"fundhub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerStats struct {
	TotalWallets        int64           `json:"total_wallets"`
	TotalBalance        decimal.Decimal `json:"total_balance"`
	TotalTransactions   int64           `json:"total_transactions"`
	PendingTransactions int64           `json:"pending_transactions"`
	TotalRefunded       decimal.Decimal `json:"total_refunded"`
	TotalInterestPaid   decimal.Decimal `json:"total_interest_paid"`
	RefundedOrders      int64           `json:"refunded_orders"`
}

type VolumePoint struct {
	Date   string          `json:"date"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetLedgerStats(ctx context.Context) (*LedgerStats, error) {
	db := r.db.WithContext(ctx)
	var s LedgerStats
	if err := db.Model(&models.Wallet{}).Count(&s.TotalWallets).Error; err != nil {
		return nil, err
	}

	var bal struct{ Total decimal.Decimal }
	db.Model(&models.Wallet{}).Select("COALESCE(SUM(balance), 0) as total").Scan(&bal)
	s.TotalBalance = bal.Total.Round(2)

	db.Model(&models.Transaction{}).Count(&s.TotalTransactions)
	db.Model(&models.Transaction{}).Where("status = ?", domain.TxnStatusPendingConfirmation).Count(&s.PendingTransactions)

	var refunded struct{ Total decimal.Decimal }
	db.Model(&models.Transaction{}).Select("COALESCE(SUM(amount), 0) as total").Where("type = ?", domain.TxnRefund).Scan(&refunded)
	s.TotalRefunded = refunded.Total.Round(2)

	var interest struct{ Total decimal.Decimal }
	db.Model(&models.Transaction{}).Select("COALESCE(SUM(amount), 0) as total").Where("type = ?", domain.TxnInterest).Scan(&interest)
	s.TotalInterestPaid = interest.Total.Round(2)

	db.Model(&models.Order{}).Where("refund_status = ?", domain.RefundStatusRefunded).Count(&s.RefundedOrders)

	return &s, nil
}

// ListTransactions returns ledger rows with optional type and status filters.
func (r *AdminRepository) ListTransactions(ctx context.Context, txType, status string, page, limit int) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	q.Count(&total)
	var list []models.Transaction
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// ListRefundedOrders returns orders that carry a refund, newest first.
func (r *AdminRepository) ListRefundedOrders(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("refund_status = ?", domain.RefundStatusRefunded)
	var total int64
	q.Count(&total)
	var list []models.Order
	err := q.Preload("Items").Order("refunded_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// VolumeByDay returns daily transaction counts and net amounts of one type
// for the last N days.
func (r *AdminRepository) VolumeByDay(ctx context.Context, txType string, days int, now time.Time) ([]VolumePoint, error) {
	since := now.AddDate(0, 0, -days)
	var points []VolumePoint
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("DATE(created_at) as date, COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Where("type = ? AND created_at >= ?", txType, since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user balance. Created lazily on first posting, never
// deleted. Balance only changes through service.WalletLedger, which bumps
// Version on every write.
type Wallet struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           string          `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	Balance          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	Currency         string          `gorm:"size:3;default:'USD'" json:"currency"`
	Version          int64           `gorm:"not null;default:0" json:"-"`
	LastInterestDate string          `gorm:"size:10" json:"last_interest_date,omitempty"` // YYYY-MM-DD
	LastUpdated      time.Time       `json:"last_updated"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

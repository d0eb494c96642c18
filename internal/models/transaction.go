package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry. Amount is signed: positive for
// credit-class types, negative for debit-class ones, so the sum of a user's
// rows equals their wallet balance. Only Status (pending_confirmation ->
// confirmed | reversed) changes after insert.
type Transaction struct {
	ID                      string          `gorm:"primaryKey;size:26" json:"id"`
	UserID                  string          `gorm:"size:64;not null;index:idx_txn_user_created,priority:1" json:"user_id"`
	Type                    string          `gorm:"size:32;not null;index" json:"type"`
	Amount                  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	BalanceAfter            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`
	Description             string          `gorm:"size:255" json:"description"`
	Status                  string          `gorm:"size:32;not null;index" json:"status"`
	OrderID                 string          `gorm:"size:64;index:idx_txn_order_product,priority:1" json:"order_id,omitempty"`
	ProductID               string          `gorm:"size:64;index:idx_txn_order_product,priority:2" json:"product_id,omitempty"`
	ReferencedTransactionID string          `gorm:"size:26;index" json:"referenced_transaction_id,omitempty"`
	Reference               *string         `gorm:"size:128;uniqueIndex" json:"-"` // idempotency key
	CancellationPeriod      bool            `gorm:"not null;default:false" json:"cancellation_period"`
	CancellationExpiryTime  *time.Time      `gorm:"index" json:"cancellation_expiry_time,omitempty"`
	CreatedAt               time.Time       `gorm:"index:idx_txn_user_created,priority:2" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

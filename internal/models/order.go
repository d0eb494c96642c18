package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is owned by order management; the ledger writes only the refund
// fields and Status on full refund or cancellation.
type Order struct {
	ID           string          `gorm:"primaryKey;size:64" json:"id"`
	UserID       string          `gorm:"size:64;not null;index" json:"user_id"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	Shipping     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"shipping"`
	Total        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total"`
	Status       string          `gorm:"size:20;not null;default:'processing';index" json:"status"`
	RefundStatus string          `gorm:"size:20;not null;default:'none'" json:"refund_status"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"refund_amount"`
	RefundReason string          `gorm:"size:255" json:"refund_reason,omitempty"`
	RefundedBy   string          `gorm:"size:64" json:"refunded_by,omitempty"`
	RefundedAt   *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	OrderID   string          `gorm:"size:64;not null;index" json:"order_id"`
	ProductID string          `gorm:"size:64;not null;index" json:"product_id"`
	Price     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal is price * quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InterestTier applies Rate (annual) to balances of at least Min.
type InterestTier struct {
	Min  decimal.Decimal `json:"min"`
	Rate decimal.Decimal `json:"rate"`
}

// InterestTiers is stored as a JSON text column.
type InterestTiers []InterestTier

func (t InterestTiers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *InterestTiers) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan InterestTiers: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*t = nil
		return nil
	}
	return json.Unmarshal(raw, t)
}

// InterestConfig is a singleton (ID 1) edited by admins.
type InterestConfig struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	DailyRate  decimal.Decimal `gorm:"type:decimal(12,8);not null" json:"daily_rate"`
	MinBalance decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"min_balance"`
	Tiers      InterestTiers   `gorm:"type:text" json:"tiers"`
	UpdatedBy  string          `gorm:"size:64" json:"updated_by,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (InterestConfig) TableName() string {
	return "interest_configs"
}

type InterestHistoryEntry struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          string          `gorm:"size:64;not null;uniqueIndex:idx_interest_user_day,priority:1" json:"user_id"`
	TransactionID   string          `gorm:"size:26;not null" json:"transaction_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	PreviousBalance decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"previous_balance"`
	NewBalance      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"new_balance"`
	AnnualRate      decimal.Decimal `gorm:"type:decimal(12,8);not null" json:"annual_rate"`
	AccrualDate     string          `gorm:"size:10;not null;uniqueIndex:idx_interest_user_day,priority:2" json:"accrual_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (InterestHistoryEntry) TableName() string {
	return "interest_history"
}

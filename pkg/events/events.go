// Package events carries ledger events (committed transactions, refunds,
// notifications) to downstream consumers. Publishing is best-effort: callers
// log failures and never roll back on them.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	TypeTransactionCreated  = "transaction.created"
	TypeRefundProcessed     = "refund.processed"
	TypeReversalFailed      = "reversal.failed"
	TypeInterestAccrued     = "interest.accrued"
	TypeNotificationCreated = "notification.created"
)

type Event struct {
	Type            string                 `json:"event_type"`
	UserID          string                 `json:"user_id"`
	TransactionID   string                 `json:"transaction_id,omitempty"`
	TransactionType string                 `json:"transaction_type,omitempty"`
	OrderID         string                 `json:"order_id,omitempty"`
	Status          string                 `json:"status,omitempty"`
	Amount          string                 `json:"amount,omitempty"`
	BalanceAfter    string                 `json:"balance_after,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. Used when neither redis nor kafka is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to several publishers. Every publisher is tried;
// the returned error joins the individual failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

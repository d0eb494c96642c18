package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CancellationWindowDuration is how long a purchase stays cancellable.
const CancellationWindowDuration = time.Hour

// IsWithinWindow is the one definition of "still cancellable". Both the
// cancellation check and the countdown use it.
func IsWithinWindow(createdAt, now time.Time) bool {
	return now.Sub(createdAt) < CancellationWindowDuration
}

// Remaining is the countdown shown to the purchaser; zero once closed.
func Remaining(createdAt, now time.Time) time.Duration {
	if !IsWithinWindow(createdAt, now) {
		return 0
	}
	return createdAt.Add(CancellationWindowDuration).Sub(now)
}

// CancellationWindow drives pending_confirmation -> confirmed | reversed.
type CancellationWindow struct {
	txns   *repository.TransactionRepository
	clock  Clock
	logger *zap.Logger
}

func NewCancellationWindow(txns *repository.TransactionRepository, clock Clock, logger *zap.Logger) *CancellationWindow {
	return &CancellationWindow{txns: txns, clock: clock, logger: logger}
}

// MarkPending opens the window on txn. The expiry is always derived from
// the transaction's own creation time.
func (w *CancellationWindow) MarkPending(ctx context.Context, txn *models.Transaction) error {
	return w.markPending(ctx, nil, txn)
}

func (w *CancellationWindow) markPending(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	repo := w.txns
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	expiry := txn.CreatedAt.Add(CancellationWindowDuration)
	if err := repo.MarkPending(ctx, txn.ID, expiry); err != nil {
		return fmt.Errorf("mark %s pending: %w", txn.ID, err)
	}
	txn.Status = domain.TxnStatusPendingConfirmation
	txn.CancellationPeriod = true
	txn.CancellationExpiryTime = &expiry
	return nil
}

// PromoteExpired confirms every expired pending transaction of userID, or
// of all users when userID is empty. Safe to repeat. In the all-users sweep
// a failing user is logged and skipped; the joined errors are returned with
// the count of rows that were promoted.
func (w *CancellationWindow) PromoteExpired(ctx context.Context, userID string) (int64, error) {
	now := w.clock.Now()
	if userID != "" {
		return w.txns.PromoteExpired(ctx, userID, now)
	}

	users, err := w.txns.ListUsersWithPendingExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list pending users: %w", err)
	}
	var total int64
	var errs []error
	for _, uid := range users {
		n, err := w.txns.PromoteExpired(ctx, uid, now)
		if err != nil {
			w.logger.Warn("promote pending transactions failed", zap.String("user_id", uid), zap.Error(err))
			errs = append(errs, fmt.Errorf("user %s: %w", uid, err))
			continue
		}
		total += n
	}
	if total > 0 {
		w.logger.Info("promoted pending transactions", zap.Int64("count", total), zap.Int("users", len(users)))
	}
	return total, errors.Join(errs...)
}

// Reverse cancels a pending transaction that is still inside its window.
func (w *CancellationWindow) Reverse(ctx context.Context, txn *models.Transaction) error {
	return w.reverse(ctx, nil, txn)
}

func (w *CancellationWindow) reverse(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	if txn.Status != domain.TxnStatusPendingConfirmation || !IsWithinWindow(txn.CreatedAt, w.clock.Now()) {
		return domain.ErrCancellationWindowClosed
	}
	repo := w.txns
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	ok, err := repo.MarkReversed(ctx, txn.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCancellationWindowClosed
	}
	txn.Status = domain.TxnStatusReversed
	return nil
}

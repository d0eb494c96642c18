package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundhub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func TestIsWithinWindow(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsWithinWindow(created, created))
	assert.True(t, IsWithinWindow(created, created.Add(59*time.Minute)))
	assert.False(t, IsWithinWindow(created, created.Add(time.Hour)))
	assert.False(t, IsWithinWindow(created, created.Add(61*time.Minute)))

	assert.Equal(t, time.Minute, Remaining(created, created.Add(59*time.Minute)))
	assert.Equal(t, time.Duration(0), Remaining(created, created.Add(61*time.Minute)))
}

func TestChargeOpensWindowAndSweepConfirms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "carol", "100")
	env.createOrder(t, "o-1", "carol", "0", orderLine{"i-1", "p-1", "60", 1})

	purchase, err := env.core.Checkout.Charge(ctx, "o-1", "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.TxnStatusPendingConfirmation, purchase.Status)
	require.NotNil(t, purchase.CancellationExpiryTime)
	assert.True(t, purchase.CancellationExpiryTime.Equal(purchase.CreatedAt.Add(time.Hour)))

	stored := env.reloadTxn(t, purchase.ID)
	assert.Equal(t, domain.TxnStatusPendingConfirmation, stored.Status)
	assert.True(t, stored.CancellationPeriod)

	env.clock.Advance(59 * time.Minute)
	n, err := env.core.Window.PromoteExpired(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(2 * time.Minute)
	n, err = env.core.Window.PromoteExpired(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, domain.TxnStatusConfirmed, env.reloadTxn(t, purchase.ID).Status)

	n, err = env.core.Window.PromoteExpired(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n, "promotion is idempotent")

	requireMoney(t, "40", env.balance(t, "carol"))
	env.requireReconciled(t, "carol")
}

func TestHistoryPromotesLazily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "carol", "100")
	env.createOrder(t, "o-1", "carol", "0", orderLine{"i-1", "p-1", "60", 1})
	purchase, err := env.core.Checkout.Charge(ctx, "o-1", "carol")
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	list, _, err := env.core.Ledger.History(ctx, "carol", 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, purchase.ID, list[0].ID)
	assert.Equal(t, domain.TxnStatusConfirmed, list[0].Status)
}

func TestReverseOnlyInsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "carol", "100")
	env.createOrder(t, "o-1", "carol", "0", orderLine{"i-1", "p-1", "60", 1})
	env.createOrder(t, "o-2", "carol", "0", orderLine{"i-2", "p-1", "10", 1})

	first, err := env.core.Checkout.Charge(ctx, "o-1", "carol")
	require.NoError(t, err)
	require.NoError(t, env.core.Window.Reverse(ctx, first))
	assert.Equal(t, domain.TxnStatusReversed, env.reloadTxn(t, first.ID).Status)

	second, err := env.core.Checkout.Charge(ctx, "o-2", "carol")
	require.NoError(t, err)
	env.clock.Advance(61 * time.Minute)
	assert.ErrorIs(t, env.core.Window.Reverse(ctx, second), domain.ErrCancellationWindowClosed)
	assert.Equal(t, domain.TxnStatusPendingConfirmation, env.reloadTxn(t, second.ID).Status)
}

func TestMarkPendingDerivesExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "dave", "10")
	txn, err := env.core.Ledger.Debit(ctx, "dave", dec("1"), "held")
	require.NoError(t, err)

	require.NoError(t, env.core.Window.MarkPending(ctx, txn))
	stored := env.reloadTxn(t, txn.ID)
	assert.Equal(t, domain.TxnStatusPendingConfirmation, stored.Status)
	require.NotNil(t, stored.CancellationExpiryTime)
	assert.True(t, stored.CancellationExpiryTime.Equal(txn.CreatedAt.Add(CancellationWindowDuration)))

	pending, err := env.core.Recorder.ListPendingExpired(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, pending)

	env.clock.Advance(time.Hour)
	pending, err = env.core.Recorder.ListPendingExpired(ctx, "dave")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	n, err := env.core.Window.PromoteExpired(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// whereMentions reports whether any WHERE condition of the statement binds v.
func whereMentions(tx *gorm.DB, v interface{}) bool {
	c, ok := tx.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range where.Exprs {
		if expr, ok := e.(clause.Expr); ok {
			for _, arg := range expr.Vars {
				if arg == v {
					return true
				}
			}
		}
	}
	return false
}

func TestPromoteExpiredSweepContinuesPastFailedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	purchases := map[string]string{}
	for _, uid := range []string{"carol", "dave", "erin"} {
		orderID := "o-" + uid
		env.fund(t, uid, "50")
		env.createOrder(t, orderID, uid, "0", orderLine{"i-" + uid, "p-1", "20", 1})
		purchase, err := env.core.Checkout.Charge(ctx, orderID, uid)
		require.NoError(t, err)
		purchases[uid] = purchase.ID
	}

	errRejected := errors.New("ledger store rejected write")
	err := env.db.Callback().Update().Before("gorm:update").Register("test:reject_dave", func(tx *gorm.DB) {
		if tx.Statement.Table == "transactions" && whereMentions(tx, "dave") {
			tx.AddError(errRejected)
		}
	})
	require.NoError(t, err)

	env.clock.Advance(61 * time.Minute)
	n, err := env.core.Window.PromoteExpired(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), "user dave")
	assert.Equal(t, int64(2), n)

	assert.Equal(t, domain.TxnStatusConfirmed, env.reloadTxn(t, purchases["carol"]).Status)
	assert.Equal(t, domain.TxnStatusConfirmed, env.reloadTxn(t, purchases["erin"]).Status)
	assert.Equal(t, domain.TxnStatusPendingConfirmation, env.reloadTxn(t, purchases["dave"]).Status)
}

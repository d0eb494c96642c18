package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundhub/internal/domain"
	"fundhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEstimateInterest(t *testing.T) {
	cfg := &models.InterestConfig{
		DailyRate:  dec("0.0001"),
		MinBalance: dec("100"),
		Tiers: models.InterestTiers{
			{Min: dec("500"), Rate: dec("0.05")},
			{Min: dec("5000"), Rate: dec("0.07")},
		},
	}

	t.Run("below minimum earns nothing", func(t *testing.T) {
		est := EstimateInterest(cfg, dec("50"))
		assert.True(t, est.DailyInterest.IsZero())
		assert.True(t, est.MonthlyInterest.IsZero())
		assert.True(t, est.YearlyInterest.IsZero())
		assert.True(t, est.AnnualRate.IsZero())
		assert.Nil(t, est.ApplicableTier)
	})

	t.Run("tier rate", func(t *testing.T) {
		est := EstimateInterest(cfg, dec("1000"))
		require.NotNil(t, est.ApplicableTier)
		requireMoney(t, "500", est.ApplicableTier.Min)
		requireMoney(t, "0.05", est.AnnualRate)
		want := dec("1000").Mul(dec("0.05")).Div(dec("365"))
		assert.True(t, want.Equal(est.DailyInterest), est.DailyInterest.String())
		assert.True(t, want.Mul(dec("30")).Equal(est.MonthlyInterest))
		assert.True(t, want.Mul(dec("365")).Equal(est.YearlyInterest))
	})

	t.Run("highest reachable tier wins regardless of order", func(t *testing.T) {
		est := EstimateInterest(cfg, dec("6000"))
		requireMoney(t, "0.07", est.AnnualRate)
	})

	t.Run("no tier falls back to the base rate", func(t *testing.T) {
		est := EstimateInterest(cfg, dec("200"))
		assert.Nil(t, est.ApplicableTier)
		requireMoney(t, "0.0365", est.AnnualRate)
		requireMoney(t, "0.02", est.DailyInterest)
	})
}

func configureInterest(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.core.Interest.UpdateConfig(context.Background(), dec("0.0001"), dec("100"),
		models.InterestTiers{{Min: dec("500"), Rate: dec("0.0365")}}, "admin-1")
	require.NoError(t, err)
}

func TestApplyDailyOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureInterest(t, env)
	env.fund(t, "saver", "1000")

	entry, err := env.core.Interest.ApplyDaily(ctx, "saver", env.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, entry)
	requireMoney(t, "0.1", entry.Amount)
	requireMoney(t, "1000", entry.PreviousBalance)
	requireMoney(t, "1000.1", entry.NewBalance)
	assert.Equal(t, "2026-03-14", entry.AccrualDate)
	requireMoney(t, "1000.1", env.balance(t, "saver"))

	_, err = env.core.Interest.ApplyDaily(ctx, "saver", env.clock.Now().Add(3*time.Hour))
	assert.ErrorIs(t, err, domain.ErrAlreadyAccrued)
	assert.Equal(t, int64(1), env.countTxns(t, "user_id = ? AND type = ?", "saver", domain.TxnInterest))

	env.clock.Advance(24 * time.Hour)
	entry, err = env.core.Interest.ApplyDaily(ctx, "saver", env.clock.Now())
	require.NoError(t, err)
	requireMoney(t, "0.1", entry.Amount)
	requireMoney(t, "1000.2", env.balance(t, "saver"))
	env.requireReconciled(t, "saver")

	history, err := env.core.Interest.History(ctx, "saver", 1, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Len(t, env.notifier.ofType(domain.NotifInterestCredited), 2)
}

func TestApplyDailyNoOps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureInterest(t, env)

	entry, err := env.core.Interest.ApplyDaily(ctx, "ghost", env.clock.Now())
	require.NoError(t, err)
	assert.Nil(t, entry)

	env.fund(t, "small", "50")
	entry, err = env.core.Interest.ApplyDaily(ctx, "small", env.clock.Now())
	require.NoError(t, err)
	assert.Nil(t, entry)
	requireMoney(t, "50", env.balance(t, "small"))
}

func TestApplyAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureInterest(t, env)
	env.fund(t, "a", "1000")
	env.fund(t, "b", "200")
	env.fund(t, "c", "50")

	report, err := env.core.Interest.ApplyAll(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Credited)
	assert.Empty(t, report.Failed)
	requireMoney(t, "0.12", report.Total)

	report, err = env.core.Interest.ApplyAll(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Credited)
	assert.Equal(t, 2, report.Skipped)
}

func TestApplyAllContinuesPastFailedWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureInterest(t, env)
	env.fund(t, "a", "1000")
	env.fund(t, "b", "200")

	errRejected := errors.New("ledger store rejected write")
	err := env.db.Callback().Create().Before("gorm:create").Register("test:reject_interest", func(tx *gorm.DB) {
		if txn, ok := tx.Statement.Dest.(*models.Transaction); ok && txn.UserID == "a" && txn.Type == domain.TxnInterest {
			tx.AddError(errRejected)
		}
	})
	require.NoError(t, err)

	report, err := env.core.Interest.ApplyAll(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Credited)
	require.Contains(t, report.Failed, "a")
	assert.Contains(t, report.Failed["a"], errRejected.Error())
	assert.NotContains(t, report.Failed, "b")
	requireMoney(t, "0.02", report.Total)

	requireMoney(t, "1000", env.balance(t, "a"))
	requireMoney(t, "200.02", env.balance(t, "b"))
	env.requireReconciled(t, "a")
	assert.Zero(t, env.countTxns(t, "user_id = ? AND type = ?", "a", domain.TxnInterest))
}

func TestInterestConfigValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.core.Interest.UpdateConfig(ctx, dec("-0.1"), dec("100"), nil, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	_, err = env.core.Interest.UpdateConfig(ctx, dec("0.1"), dec("100"), models.InterestTiers{{Min: dec("1"), Rate: dec("-1")}}, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	configureInterest(t, env)
	cfg, err := env.core.Interest.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", cfg.UpdatedBy)
	require.Len(t, cfg.Tiers, 1)
	requireMoney(t, "0.0365", cfg.Tiers[0].Rate)
}

func TestInterestConfigMissing(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Exec("DELETE FROM interest_configs").Error)

	_, err := env.core.Interest.GetConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	_, err = env.core.Interest.ApplyDaily(context.Background(), "a", env.clock.Now())
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/repository"
	"fundhub/pkg/events"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	daysPerYear  = decimal.NewFromInt(365)
	daysPerMonth = decimal.NewFromInt(30)
)

type InterestEstimate struct {
	DailyInterest   decimal.Decimal      `json:"daily_interest"`
	MonthlyInterest decimal.Decimal      `json:"monthly_interest"`
	YearlyInterest  decimal.Decimal      `json:"yearly_interest"`
	AnnualRate      decimal.Decimal      `json:"annual_rate"`
	ApplicableTier  *models.InterestTier `json:"applicable_tier,omitempty"`
}

// EstimateInterest is pure. Balances under the minimum earn nothing. Above
// it the highest tier whose min the balance reaches applies; with no such
// tier the base daily rate is annualised.
func EstimateInterest(cfg *models.InterestConfig, balance decimal.Decimal) InterestEstimate {
	if balance.LessThan(cfg.MinBalance) {
		return InterestEstimate{
			DailyInterest:   decimal.Zero,
			MonthlyInterest: decimal.Zero,
			YearlyInterest:  decimal.Zero,
			AnnualRate:      decimal.Zero,
		}
	}

	tiers := make(models.InterestTiers, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Min.GreaterThan(tiers[j].Min) })

	est := InterestEstimate{AnnualRate: cfg.DailyRate.Mul(daysPerYear)}
	for i := range tiers {
		if tiers[i].Min.LessThanOrEqual(balance) {
			t := tiers[i]
			est.ApplicableTier = &t
			est.AnnualRate = t.Rate
			break
		}
	}
	est.DailyInterest = balance.Mul(est.AnnualRate).Div(daysPerYear)
	est.MonthlyInterest = est.DailyInterest.Mul(daysPerMonth)
	est.YearlyInterest = est.DailyInterest.Mul(daysPerYear)
	return est
}

// BatchReport summarises one ApplyAll sweep.
type BatchReport struct {
	Date      string            `json:"date"`
	Processed int               `json:"processed"`
	Credited  int               `json:"credited"`
	Skipped   int               `json:"skipped"`
	Total     decimal.Decimal   `json:"total"`
	Failed    map[string]string `json:"failed,omitempty"`
}

type InterestEngine struct {
	configs  *repository.InterestRepository
	wallets  *repository.WalletRepository
	ledger   *WalletLedger
	notifier Notifier
	events   events.Publisher
	clock    Clock
	logger   *zap.Logger
}

func NewInterestEngine(configs *repository.InterestRepository, wallets *repository.WalletRepository, ledger *WalletLedger,
	notifier Notifier, publisher events.Publisher, clock Clock, logger *zap.Logger) *InterestEngine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &InterestEngine{configs: configs, wallets: wallets, ledger: ledger, notifier: notifier, events: publisher, clock: clock, logger: logger}
}

func (e *InterestEngine) GetConfig(ctx context.Context) (*models.InterestConfig, error) {
	return e.configs.GetConfig(ctx)
}

// UpdateConfig replaces the interest configuration. Rates and minimums may
// not be negative.
func (e *InterestEngine) UpdateConfig(ctx context.Context, dailyRate, minBalance decimal.Decimal, tiers models.InterestTiers, updatedBy string) (*models.InterestConfig, error) {
	if dailyRate.IsNegative() || minBalance.IsNegative() {
		return nil, fmt.Errorf("%w: negative rate or minimum balance", domain.ErrInvalidConfig)
	}
	for _, t := range tiers {
		if t.Rate.IsNegative() || t.Min.IsNegative() {
			return nil, fmt.Errorf("%w: negative tier", domain.ErrInvalidConfig)
		}
	}
	if tiers == nil {
		tiers = models.InterestTiers{}
	}
	cfg := &models.InterestConfig{
		DailyRate:  dailyRate,
		MinBalance: minBalance,
		Tiers:      tiers,
		UpdatedBy:  updatedBy,
		UpdatedAt:  e.clock.Now(),
	}
	if err := e.configs.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	e.logger.Info("interest config updated", zap.String("updated_by", updatedBy),
		zap.String("daily_rate", dailyRate.String()), zap.Int("tiers", len(tiers)))
	return cfg, nil
}

func (e *InterestEngine) Estimate(ctx context.Context, balance decimal.Decimal) (InterestEstimate, error) {
	cfg, err := e.configs.GetConfig(ctx)
	if err != nil {
		return InterestEstimate{}, err
	}
	return EstimateInterest(cfg, balance), nil
}

// ApplyDaily credits one day of interest for asOf's UTC calendar day.
// nil, nil means nothing was due. A second call for the same day fails with
// domain.ErrAlreadyAccrued.
func (e *InterestEngine) ApplyDaily(ctx context.Context, userID string, asOf time.Time) (*models.InterestHistoryEntry, error) {
	cfg, err := e.configs.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	day := asOf.UTC().Format(time.DateOnly)

	w, err := e.wallets.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if w.LastInterestDate == day {
		return nil, domain.ErrAlreadyAccrued
	}

	est := EstimateInterest(cfg, w.Balance)
	amount := est.DailyInterest.Round(2)
	if !amount.IsPositive() {
		return nil, nil
	}

	var entry *models.InterestHistoryEntry
	_, err = e.ledger.Post(ctx, userID, amount, Posting{
		Type:        domain.TxnInterest,
		Description: fmt.Sprintf("Daily interest for %s at %s%% APR", day, est.AnnualRate.Mul(decimal.NewFromInt(100)).StringFixed(2)),
		Reference:   "interest:" + userID + ":" + day,
		AfterPost: func(tx *gorm.DB, txn *models.Transaction) error {
			claimed, err := e.wallets.WithTx(tx).SetLastInterestDate(ctx, userID, day)
			if err != nil {
				return err
			}
			if !claimed {
				return domain.ErrAlreadyAccrued
			}
			entry = &models.InterestHistoryEntry{
				UserID:          userID,
				TransactionID:   txn.ID,
				Amount:          amount,
				PreviousBalance: txn.BalanceAfter.Sub(amount),
				NewBalance:      txn.BalanceAfter,
				AnnualRate:      est.AnnualRate,
				AccrualDate:     day,
				CreatedAt:       txn.CreatedAt,
			}
			return e.configs.WithTx(tx).CreateHistory(ctx, entry)
		},
	})
	if errors.Is(err, domain.ErrDuplicateReference) {
		return nil, domain.ErrAlreadyAccrued
	}
	if err != nil {
		return nil, err
	}

	if e.notifier != nil {
		e.notifier.Notify(ctx, userID, domain.NotifInterestCredited, "Interest credited",
			fmt.Sprintf("%s interest was added to your wallet.", amount.StringFixed(2)), "/wallet")
	}
	if err := e.events.Publish(ctx, events.Event{
		Type:          events.TypeInterestAccrued,
		UserID:        userID,
		TransactionID: entry.TransactionID,
		Amount:        amount.StringFixed(2),
		Metadata:      map[string]interface{}{"accrual_date": day, "annual_rate": est.AnnualRate.String()},
	}); err != nil {
		e.logger.Debug("publish interest event failed", zap.Error(err))
	}
	return entry, nil
}

// ApplyAll runs ApplyDaily for every wallet at or above the minimum
// balance. One wallet failing does not stop the sweep.
func (e *InterestEngine) ApplyAll(ctx context.Context, asOf time.Time) (*BatchReport, error) {
	cfg, err := e.configs.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	users, err := e.wallets.ListUserIDsWithBalanceAtLeast(ctx, cfg.MinBalance)
	if err != nil {
		return nil, fmt.Errorf("list interest-bearing wallets: %w", err)
	}

	report := &BatchReport{Date: asOf.UTC().Format(time.DateOnly), Total: decimal.Zero}
	for _, uid := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		entry, err := e.ApplyDaily(ctx, uid, asOf)
		switch {
		case errors.Is(err, domain.ErrAlreadyAccrued):
			report.Skipped++
		case err != nil:
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[uid] = err.Error()
			e.logger.Warn("interest accrual failed", zap.String("user_id", uid), zap.Error(err))
		case entry == nil:
			report.Skipped++
		default:
			report.Credited++
			report.Total = report.Total.Add(entry.Amount)
		}
	}
	e.logger.Info("interest sweep finished",
		zap.String("date", report.Date),
		zap.Int("processed", report.Processed),
		zap.Int("credited", report.Credited),
		zap.Int("failed", len(report.Failed)),
		zap.String("total", report.Total.StringFixed(2)))
	return report, nil
}

func (e *InterestEngine) History(ctx context.Context, userID string, page, limit int) ([]models.InterestHistoryEntry, error) {
	return e.configs.ListHistory(ctx, userID, limit, (page-1)*limit)
}

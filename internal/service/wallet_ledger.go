package service

import (
	"context"
	"errors"
	"fmt"

	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/repository"
	"fundhub/pkg/cache"
	"fundhub/pkg/events"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errVersionConflict = errors.New("wallet version conflict")

// Posting describes one typed ledger mutation.
type Posting struct {
	Type        string
	Direction   Direction // only read for transfer, whose class is "either"
	Description string
	OrderID     string
	ProductID   string
	// ReferencedTransactionID links reversals, refunds and compensations
	// to the entry they undo.
	ReferencedTransactionID string
	Reference               string
	// AfterPost runs inside the same DB transaction as the balance write and
	// the ledger row. Returning an error rolls all of it back.
	AfterPost func(tx *gorm.DB, txn *models.Transaction) error
}

type TransferResult struct {
	FromTxn *models.Transaction `json:"from_transaction"`
	ToTxn   *models.Transaction `json:"to_transaction"`
}

type Reconciliation struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
	Balanced  bool            `json:"balanced"`
}

// WalletLedger is the only writer of wallet balances. Each mutation reads
// the wallet, applies the signed amount in Go and writes it back guarded by
// the wallet version, together with the ledger row, in one DB transaction.
type WalletLedger struct {
	db         *gorm.DB
	wallets    *repository.WalletRepository
	recorder   *TransactionRecorder
	window     *CancellationWindow
	balances   *cache.BalanceCache
	events     events.Publisher
	notifier   Notifier
	clock      Clock
	logger     *zap.Logger
	maxRetries int
}

func NewWalletLedger(db *gorm.DB, wallets *repository.WalletRepository, recorder *TransactionRecorder, window *CancellationWindow,
	balances *cache.BalanceCache, publisher events.Publisher, notifier Notifier, clock Clock, logger *zap.Logger, maxRetries int) *WalletLedger {
	if maxRetries < 1 {
		maxRetries = 5
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &WalletLedger{
		db:         db,
		wallets:    wallets,
		recorder:   recorder,
		window:     window,
		balances:   balances,
		events:     publisher,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

func (l *WalletLedger) Credit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return l.Post(ctx, userID, amount, Posting{Type: domain.TxnCredit, Description: description})
}

func (l *WalletLedger) Debit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return l.Post(ctx, userID, amount, Posting{Type: domain.TxnDebit, Description: description})
}

// Post applies amount (a positive magnitude) to userID's wallet. The sign
// comes from the posting type.
func (l *WalletLedger) Post(ctx context.Context, userID string, amount decimal.Decimal, p Posting) (*models.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrInvalidTransfer)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	dir, ok := Classify(p.Type)
	if !ok {
		return nil, fmt.Errorf("unknown transaction type %q", p.Type)
	}
	if dir == DirectionEither {
		dir = p.Direction
	}
	signed := amount
	switch dir {
	case DirectionCredit:
	case DirectionDebit:
		signed = amount.Neg()
	default:
		return nil, fmt.Errorf("posting %s needs an explicit direction", p.Type)
	}

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		txn, version, err := l.apply(ctx, userID, signed, p)
		if errors.Is(err, errVersionConflict) {
			l.logger.Debug("wallet version conflict, retrying",
				zap.String("user_id", userID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		l.afterCommit(ctx, txn, version)
		return txn, nil
	}
	return nil, domain.ErrConcurrentUpdate
}

// apply returns the posted entry and the wallet version it produced.
func (l *WalletLedger) apply(ctx context.Context, userID string, signed decimal.Decimal, p Posting) (*models.Transaction, int64, error) {
	var txn *models.Transaction
	var version int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.clock.Now()
		wallets := l.wallets.WithTx(tx)
		w, err := wallets.GetOrCreate(ctx, userID, now)
		if errors.Is(err, repository.ErrWalletNotVisible) {
			return errVersionConflict
		}
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		balance := w.Balance.Add(signed)
		if balance.IsNegative() {
			return domain.ErrInsufficientFunds
		}
		swapped, err := wallets.CompareAndSwapBalance(ctx, w, balance, now)
		if err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		if !swapped {
			return errVersionConflict
		}
		version = w.Version + 1
		txn, err = l.recorder.Record(ctx, tx, userID, p.Type, signed, p.Description, Meta{
			OrderID:                 p.OrderID,
			ProductID:               p.ProductID,
			ReferencedTransactionID: p.ReferencedTransactionID,
			Reference:               p.Reference,
			BalanceAfter:            balance,
		})
		if err != nil {
			return err
		}
		if p.AfterPost != nil {
			return p.AfterPost(tx, txn)
		}
		return nil
	})
	return txn, version, err
}

// afterCommit is best-effort: the mutation is already durable.
func (l *WalletLedger) afterCommit(ctx context.Context, txn *models.Transaction, version int64) {
	if err := l.balances.Set(ctx, txn.UserID, version, txn.BalanceAfter); err != nil {
		l.logger.Warn("balance cache update failed", zap.String("user_id", txn.UserID), zap.Error(err))
		if err := l.balances.Invalidate(ctx, txn.UserID); err != nil {
			l.logger.Warn("balance cache invalidate failed", zap.String("user_id", txn.UserID), zap.Error(err))
		}
	}
	err := l.events.Publish(ctx, events.Event{
		Type:            events.TypeTransactionCreated,
		UserID:          txn.UserID,
		TransactionID:   txn.ID,
		TransactionType: txn.Type,
		OrderID:         txn.OrderID,
		Status:          txn.Status,
		Amount:          txn.Amount.StringFixed(2),
		BalanceAfter:    txn.BalanceAfter.StringFixed(2),
		Timestamp:       txn.CreatedAt,
	})
	if err != nil {
		l.logger.Warn("publish transaction event failed", zap.String("transaction_id", txn.ID), zap.Error(err))
	}
}

// Transfer debits from and credits to. If the credit leg fails after the
// debit committed, the sender is credited back with a refund entry that
// references the debit leg, and the credit error is returned.
func (l *WalletLedger) Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, description string) (*TransferResult, error) {
	if fromUserID == toUserID {
		return nil, fmt.Errorf("%w: cannot transfer to self", domain.ErrInvalidTransfer)
	}
	if toUserID == "" {
		return nil, fmt.Errorf("%w: missing recipient", domain.ErrInvalidTransfer)
	}

	fromTxn, err := l.Post(ctx, fromUserID, amount, Posting{
		Type:        domain.TxnTransfer,
		Direction:   DirectionDebit,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	toTxn, err := l.Post(ctx, toUserID, amount, Posting{
		Type:                    domain.TxnTransfer,
		Direction:               DirectionCredit,
		Description:             description,
		ReferencedTransactionID: fromTxn.ID,
	})
	if err != nil {
		_, cerr := l.Post(ctx, fromUserID, amount, Posting{
			Type:                    domain.TxnRefund,
			Description:             "refund: failed transfer",
			ReferencedTransactionID: fromTxn.ID,
			Reference:               "transfer-compensation:" + fromTxn.ID,
		})
		if cerr != nil {
			l.logger.Error("transfer compensation failed, sender left debited",
				zap.String("from_user_id", fromUserID),
				zap.String("debit_transaction_id", fromTxn.ID),
				zap.String("amount", amount.StringFixed(2)),
				zap.NamedError("credit_error", err),
				zap.NamedError("compensation_error", cerr))
			return nil, fmt.Errorf("transfer credit leg: %w (compensation failed: %v)", err, cerr)
		}
		l.logger.Warn("transfer credit leg failed, sender compensated",
			zap.String("debit_transaction_id", fromTxn.ID), zap.Error(err))
		return nil, fmt.Errorf("transfer credit leg: %w", err)
	}

	if l.notifier != nil {
		l.notifier.Notify(ctx, toUserID, domain.NotifTransferReceived, "Money received",
			fmt.Sprintf("You received %s from another user.", amount.StringFixed(2)), "/wallet")
	}
	return &TransferResult{FromTxn: fromTxn, ToTxn: toTxn}, nil
}

// Balance returns zero for users who never had a wallet.
func (l *WalletLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if b, ok := l.balances.Get(ctx, userID); ok {
		return b, nil
	}
	w, err := l.wallets.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.balances.Set(ctx, userID, w.Version, w.Balance); err != nil {
		l.logger.Debug("balance cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return w.Balance, nil
}

// History lists the user's entries newest first. Pending purchases whose
// window has passed are confirmed before reading.
func (l *WalletLedger) History(ctx context.Context, userID string, page, pageSize int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if l.window != nil {
		if _, err := l.window.PromoteExpired(ctx, userID); err != nil {
			l.logger.Warn("lazy promotion failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return l.recorder.ListByUser(ctx, userID, page, pageSize)
}

// Reconcile compares the stored balance with the sum of the user's entries.
func (l *WalletLedger) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var balance decimal.Decimal
	w, err := l.wallets.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, err
	default:
		balance = w.Balance
	}
	sum, err := l.recorder.SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{
		UserID:    userID,
		Balance:   balance,
		LedgerSum: sum,
		Balanced:  balance.Equal(sum),
	}, nil
}

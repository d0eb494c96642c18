package service

import (
	"context"
	"fmt"

	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/repository"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Direction is the balance effect class of a transaction type.
type Direction int

const (
	DirectionEither Direction = iota
	DirectionCredit
	DirectionDebit
)

func (d Direction) String() string {
	switch d {
	case DirectionCredit:
		return "credit"
	case DirectionDebit:
		return "debit"
	}
	return "either"
}

var typeClasses = map[string]Direction{
	domain.TxnCredit:             DirectionCredit,
	domain.TxnDeposit:            DirectionCredit,
	domain.TxnRevenueShare:       DirectionCredit,
	domain.TxnCommission:         DirectionCredit,
	domain.TxnRefund:             DirectionCredit,
	domain.TxnInterest:           DirectionCredit,
	domain.TxnDebit:              DirectionDebit,
	domain.TxnPurchase:           DirectionDebit,
	domain.TxnRevenueReversal:    DirectionDebit,
	domain.TxnCommissionReversal: DirectionDebit,
	domain.TxnTransfer:           DirectionEither,
}

// Classify returns the class of txnType; ok is false for unknown types.
func Classify(txnType string) (Direction, bool) {
	d, ok := typeClasses[txnType]
	return d, ok
}

// Meta carries the optional columns of a ledger entry.
type Meta struct {
	OrderID                 string
	ProductID               string
	ReferencedTransactionID string
	Reference               string // idempotency key, unique when set
	BalanceAfter            decimal.Decimal
}

// TransactionRecorder appends ledger entries. It never updates amounts or
// deletes rows.
type TransactionRecorder struct {
	repo  *repository.TransactionRepository
	clock Clock
}

func NewTransactionRecorder(repo *repository.TransactionRepository, clock Clock) *TransactionRecorder {
	return &TransactionRecorder{repo: repo, clock: clock}
}

// Record inserts one entry through tx (the caller's DB transaction, or nil
// to use the recorder's own handle). amount is signed and must agree with
// the type's class.
func (r *TransactionRecorder) Record(ctx context.Context, tx *gorm.DB, userID, txnType string, amount decimal.Decimal, description string, meta Meta) (*models.Transaction, error) {
	class, ok := Classify(txnType)
	if !ok {
		return nil, fmt.Errorf("unknown transaction type %q", txnType)
	}
	if amount.IsZero() ||
		(class == DirectionCredit && amount.IsNegative()) ||
		(class == DirectionDebit && amount.IsPositive()) {
		return nil, fmt.Errorf("%w: %s amount %s for %s entry", domain.ErrInvalidAmount, class, amount, txnType)
	}

	t := &models.Transaction{
		ID:                      ulid.Make().String(),
		UserID:                  userID,
		Type:                    txnType,
		Amount:                  amount.Round(2),
		BalanceAfter:            meta.BalanceAfter.Round(2),
		Description:             description,
		Status:                  domain.TxnStatusCompleted,
		OrderID:                 meta.OrderID,
		ProductID:               meta.ProductID,
		ReferencedTransactionID: meta.ReferencedTransactionID,
		CreatedAt:               r.clock.Now(),
	}
	if meta.Reference != "" {
		ref := meta.Reference
		t.Reference = &ref
	}

	repo := r.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	if err := repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TransactionRecorder) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return r.repo.GetByID(ctx, id)
}

func (r *TransactionRecorder) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return r.repo.FindByReference(ctx, reference)
}

func (r *TransactionRecorder) FindByOrderAndType(ctx context.Context, orderID, txnType string) ([]models.Transaction, error) {
	return r.repo.FindByOrderAndType(ctx, orderID, txnType)
}

func (r *TransactionRecorder) FindByOrderProductAndType(ctx context.Context, orderID, productID, txnType string) ([]models.Transaction, error) {
	return r.repo.FindByOrderProductAndType(ctx, orderID, productID, txnType)
}

func (r *TransactionRecorder) FindReversalOf(ctx context.Context, originalID string) (*models.Transaction, error) {
	return r.repo.FindReversalOf(ctx, originalID)
}

func (r *TransactionRecorder) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Transaction, int64, error) {
	return r.repo.ListByUser(ctx, userID, page, limit)
}

// ListPendingExpired lists pending entries whose window has closed, for one
// user or, with userID "", for everyone.
func (r *TransactionRecorder) ListPendingExpired(ctx context.Context, userID string) ([]models.Transaction, error) {
	return r.repo.ListPendingExpired(ctx, userID, r.clock.Now())
}

func (r *TransactionRecorder) SumByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	return r.repo.SumByUser(ctx, userID)
}

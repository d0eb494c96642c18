package service

import (
	"context"
	"errors"
	"fmt"

	"fundhub/internal/domain"
	"fundhub/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductCatalog is the read-only view of products the ledger needs.
type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	OwnsAny(ctx context.Context, designerID string, productIDs []string) (bool, error)
}

type OrderLookup interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

// ReversalFailure is one distribution that could not be taken back. It can
// be retried with RevenueReversalEngine.RetryReversal.
type ReversalFailure struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Err           error           `json:"-"`
	Reason        string          `json:"reason"`
}

type ReversalResult struct {
	OrderID         string                `json:"order_id"`
	ProductID       string                `json:"product_id"`
	Reversed        []*models.Transaction `json:"reversed"`
	AlreadyReversed []string              `json:"already_reversed,omitempty"`
	Failures        []ReversalFailure     `json:"failures,omitempty"`
}

func (r *ReversalResult) Failed() bool { return len(r.Failures) > 0 }

// Err wraps domain.ErrReversalPartialFailure when anything failed.
func (r *ReversalResult) Err() error {
	if !r.Failed() {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s %s: %w", f.Type, f.TransactionID, f.Err))
	}
	return fmt.Errorf("%w: product %s: %w", domain.ErrReversalPartialFailure, r.ProductID, errors.Join(errs...))
}

var reversalTypes = map[string]string{
	domain.TxnRevenueShare: domain.TxnRevenueReversal,
	domain.TxnCommission:   domain.TxnCommissionReversal,
}

// RevenueReversalEngine takes back investor revenue shares and designer
// commissions paid for a refunded order item. Each distribution is reversed
// at most once, for its full amount, from the wallet that received it.
type RevenueReversalEngine struct {
	ledger   *WalletLedger
	recorder *TransactionRecorder
	catalog  ProductCatalog
	orders   OrderLookup
	notifier Notifier
	logger   *zap.Logger
}

func NewRevenueReversalEngine(ledger *WalletLedger, recorder *TransactionRecorder, catalog ProductCatalog, orders OrderLookup, notifier Notifier, logger *zap.Logger) *RevenueReversalEngine {
	return &RevenueReversalEngine{ledger: ledger, recorder: recorder, catalog: catalog, orders: orders, notifier: notifier, logger: logger}
}

// ReverseForOrderItem returns an error only when the distributions could not
// be looked up. Per-distribution failures are reported in the result.
func (e *RevenueReversalEngine) ReverseForOrderItem(ctx context.Context, productID, orderID string) (*ReversalResult, error) {
	res := &ReversalResult{OrderID: orderID, ProductID: productID}
	productName := e.productName(ctx, productID)

	for _, origType := range []string{domain.TxnRevenueShare, domain.TxnCommission} {
		originals, err := e.recorder.FindByOrderProductAndType(ctx, orderID, productID, origType)
		if err != nil {
			return res, fmt.Errorf("find %s for order %s product %s: %w", origType, orderID, productID, err)
		}
		for i := range originals {
			e.reverseInto(ctx, res, &originals[i], productName)
		}
	}

	if res.Failed() {
		e.logger.Warn("revenue reversal incomplete",
			zap.String("order_id", orderID), zap.String("product_id", productID),
			zap.Int("failed", len(res.Failures)), zap.Int("reversed", len(res.Reversed)))
	}
	return res, nil
}

// RetryReversal re-runs the reversal of one revenue_share or commission
// entry. Already reversed entries come back in AlreadyReversed. The entry's
// order must have been refunded.
func (e *RevenueReversalEngine) RetryReversal(ctx context.Context, transactionID string) (*ReversalResult, error) {
	orig, err := e.recorder.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if _, ok := reversalTypes[orig.Type]; !ok {
		return nil, fmt.Errorf("%w: %s is a %s entry, not a distribution", domain.ErrTransactionNotFound, orig.ID, orig.Type)
	}
	if err := e.requireRefunded(ctx, orig.OrderID); err != nil {
		return nil, err
	}
	res := &ReversalResult{OrderID: orig.OrderID, ProductID: orig.ProductID}
	e.reverseInto(ctx, res, orig, e.productName(ctx, orig.ProductID))
	return res, nil
}

func (e *RevenueReversalEngine) reverseInto(ctx context.Context, res *ReversalResult, orig *models.Transaction, productName string) {
	revType := reversalTypes[orig.Type]
	amount := orig.Amount.Abs()

	existing, err := e.recorder.FindReversalOf(ctx, orig.ID)
	if err == nil && existing != nil {
		res.AlreadyReversed = append(res.AlreadyReversed, orig.ID)
		return
	}
	if err != nil {
		res.Failures = append(res.Failures, newReversalFailure(orig, revType, amount, err))
		return
	}

	txn, err := e.ledger.Post(ctx, orig.UserID, amount, Posting{
		Type:                    revType,
		Description:             fmt.Sprintf("Reversal of %s for %s (order %s)", orig.Type, productName, orig.OrderID),
		OrderID:                 orig.OrderID,
		ProductID:               orig.ProductID,
		ReferencedTransactionID: orig.ID,
		Reference:               "reversal:" + orig.ID,
	})
	if errors.Is(err, domain.ErrDuplicateReference) {
		// lost a race with a concurrent reversal of the same entry
		res.AlreadyReversed = append(res.AlreadyReversed, orig.ID)
		return
	}
	if errors.Is(err, domain.ErrInsufficientFunds) {
		// a concurrent reversal may have drained the wallet first
		if done, ferr := e.recorder.FindReversalOf(ctx, orig.ID); ferr == nil && done != nil {
			res.AlreadyReversed = append(res.AlreadyReversed, orig.ID)
			return
		}
	}
	if err != nil {
		res.Failures = append(res.Failures, newReversalFailure(orig, revType, amount, err))
		e.logger.Warn("reversal failed",
			zap.String("transaction_id", orig.ID), zap.String("user_id", orig.UserID),
			zap.String("amount", amount.StringFixed(2)), zap.Error(err))
		if e.notifier != nil && errors.Is(err, domain.ErrInsufficientFunds) {
			e.notifier.Notify(ctx, orig.UserID, domain.NotifReversalNeedsAttention, "Reversal pending",
				fmt.Sprintf("%s from %s has to be returned after a refund. Top up your wallet so it can be settled.", amount.StringFixed(2), productName), "/wallet")
		}
		return
	}
	res.Reversed = append(res.Reversed, txn)

	if e.notifier == nil {
		return
	}
	if revType == domain.TxnRevenueReversal {
		e.notifier.Notify(ctx, orig.UserID, domain.NotifRevenueReversed, "Revenue reversed",
			fmt.Sprintf("%s of revenue from %s was reversed because an order was refunded.", amount.StringFixed(2), productName), "/wallet")
	} else {
		e.notifier.Notify(ctx, orig.UserID, domain.NotifCommissionReversed, "Commission reversed",
			fmt.Sprintf("%s of commission on %s was reversed because an order was refunded.", amount.StringFixed(2), productName), "/wallet")
	}
}

func (e *RevenueReversalEngine) requireRefunded(ctx context.Context, orderID string) error {
	if e.orders == nil {
		return nil
	}
	order, err := e.orders.GetByID(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return fmt.Errorf("%w: order %s does not exist", domain.ErrOrderNotRefunded, orderID)
	}
	if err != nil {
		return err
	}
	if order.RefundStatus != domain.RefundStatusRefunded {
		return fmt.Errorf("%w: order %s", domain.ErrOrderNotRefunded, orderID)
	}
	return nil
}

func (e *RevenueReversalEngine) productName(ctx context.Context, productID string) string {
	if e.catalog == nil {
		return productID
	}
	p, err := e.catalog.GetByID(ctx, productID)
	if err != nil || p == nil {
		return productID
	}
	return p.Name
}

func newReversalFailure(orig *models.Transaction, revType string, amount decimal.Decimal, err error) ReversalFailure {
	return ReversalFailure{
		TransactionID: orig.ID,
		UserID:        orig.UserID,
		Type:          revType,
		Amount:        amount,
		Err:           err,
		Reason:        err.Error(),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/repository"
	"fundhub/pkg/events"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RefundSource string

const (
	RefundSourceAdmin                RefundSource = "admin"
	RefundSourceDesignerRejection    RefundSource = "designer_rejection"
	RefundSourceCustomerCancellation RefundSource = "customer_cancellation"
)

type RefundOutcome string

const (
	RefundOutcomeRefunded                RefundOutcome = "refunded"
	RefundOutcomeRefundedPendingReversal RefundOutcome = "refunded_with_pending_reversals"
)

type RefundRequest struct {
	OrderID      string
	ActingUserID string
	Reason       string
	RefundAll    bool
	// ItemIDs selects order items by item id or product id for a partial refund.
	ItemIDs []string
	Source  RefundSource
}

// ItemReversal is the reversal outcome for one refunded product.
type ItemReversal struct {
	ProductID string          `json:"product_id"`
	Result    *ReversalResult `json:"result,omitempty"`
	Err       string          `json:"error,omitempty"`
	err       error
}

type RefundResult struct {
	OrderID           string              `json:"order_id"`
	Amount            decimal.Decimal     `json:"amount"`
	Full              bool                `json:"full"`
	RefundTransaction *models.Transaction `json:"refund_transaction"`
	Items             []ItemReversal      `json:"items"`
	Outcome           RefundOutcome       `json:"outcome"`
}

// PendingReversals lists distributions that still need to be taken back.
func (r *RefundResult) PendingReversals() []ReversalFailure {
	var out []ReversalFailure
	for _, it := range r.Items {
		if it.Result != nil {
			out = append(out, it.Result.Failures...)
		}
	}
	return out
}

// ReversalError is nil when every reversal succeeded. Otherwise it wraps
// domain.ErrReversalPartialFailure. The refund itself is committed either way.
func (r *RefundResult) ReversalError() error {
	var errs []error
	for _, it := range r.Items {
		if it.err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", it.ProductID, it.err))
		}
		if it.Result != nil {
			if err := it.Result.Err(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: order %s: %w", domain.ErrReversalPartialFailure, r.OrderID, errors.Join(errs...))
}

// ComputeRefund prices a refund. Full refunds return the order total. A
// partial refund is the selected lines plus shipping prorated by the number
// of selected lines, rounded to cents.
func ComputeRefund(order *models.Order, refundAll bool, itemIDs []string) (decimal.Decimal, []models.OrderItem) {
	if refundAll {
		return order.Total.Round(2), order.Items
	}
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var selected []models.OrderItem
	amount := decimal.Zero
	for _, it := range order.Items {
		if wanted[it.ID] || wanted[it.ProductID] {
			selected = append(selected, it)
			amount = amount.Add(it.LineTotal())
		}
	}
	if len(selected) > 0 && len(order.Items) > 0 {
		share := order.Shipping.
			Mul(decimal.NewFromInt(int64(len(selected)))).
			Div(decimal.NewFromInt(int64(len(order.Items))))
		amount = amount.Add(share)
	}
	return amount.Round(2), selected
}

// RefundProcessor is the single refund path for admins, designer rejections
// and customer cancellations. The purchaser is always credited first;
// reversal failures are reported and never undo the refund.
type RefundProcessor struct {
	orders    *repository.OrderRepository
	ledger    *WalletLedger
	recorder  *TransactionRecorder
	window    *CancellationWindow
	reversals *RevenueReversalEngine
	notifier  Notifier
	events    events.Publisher
	clock     Clock
	logger    *zap.Logger
}

func NewRefundProcessor(orders *repository.OrderRepository, ledger *WalletLedger, recorder *TransactionRecorder, window *CancellationWindow,
	reversals *RevenueReversalEngine, notifier Notifier, publisher events.Publisher, clock Clock, logger *zap.Logger) *RefundProcessor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &RefundProcessor{
		orders:    orders,
		ledger:    ledger,
		recorder:  recorder,
		window:    window,
		reversals: reversals,
		notifier:  notifier,
		events:    publisher,
		clock:     clock,
		logger:    logger,
	}
}

func (p *RefundProcessor) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	order, err := p.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.RefundStatus == domain.RefundStatusRefunded {
		return nil, domain.ErrAlreadyRefunded
	}

	amount, items := ComputeRefund(order, req.RefundAll, req.ItemIDs)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidRefundAmount
	}

	purchase := p.pendingPurchase(ctx, order)
	posting := Posting{
		Type:        domain.TxnRefund,
		Description: refundDescription(order.ID, req),
		OrderID:     order.ID,
		Reference:   "refund:" + order.ID,
	}
	if purchase != nil {
		posting.ReferencedTransactionID = purchase.ID
		if req.RefundAll {
			posting.AfterPost = func(tx *gorm.DB, _ *models.Transaction) error {
				err := p.window.reverse(ctx, tx, purchase)
				if errors.Is(err, domain.ErrCancellationWindowClosed) {
					// window closed meanwhile; the refund stands on its own
					return nil
				}
				return err
			}
		}
	}

	refundTxn, err := p.ledger.Post(ctx, order.UserID, amount, posting)
	if errors.Is(err, domain.ErrDuplicateReference) {
		// an earlier attempt credited the purchaser but did not finish;
		// the committed credit is kept and the remaining steps are re-run
		if done, gerr := p.orders.GetByID(ctx, order.ID); gerr == nil && done.RefundStatus == domain.RefundStatusRefunded {
			return nil, domain.ErrAlreadyRefunded
		}
		refundTxn, err = p.committedRefund(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		amount = refundTxn.Amount
		p.logger.Info("resuming interrupted refund",
			zap.String("order_id", order.ID), zap.String("refund_transaction_id", refundTxn.ID))
	} else if err != nil {
		return nil, fmt.Errorf("credit refund for order %s: %w", order.ID, err)
	}

	res := &RefundResult{
		OrderID:           order.ID,
		Amount:            amount,
		Full:              req.RefundAll,
		RefundTransaction: refundTxn,
		Outcome:           RefundOutcomeRefunded,
	}

	for _, productID := range uniqueProducts(items) {
		rr, err := p.reversals.ReverseForOrderItem(ctx, productID, order.ID)
		item := ItemReversal{ProductID: productID, Result: rr}
		if err != nil {
			item.err = err
			item.Err = err.Error()
		}
		res.Items = append(res.Items, item)
	}

	claimed, err := p.orders.ApplyRefund(ctx, order.ID, repository.RefundUpdate{
		Amount:     amount,
		Reason:     req.Reason,
		RefundedBy: req.ActingUserID,
		RefundedAt: p.clock.Now(),
		Full:       req.RefundAll,
	})
	if err != nil {
		// the credit is durable; calling ProcessRefund again resumes from here
		p.logger.Error("refund credited but order update failed",
			zap.String("order_id", order.ID), zap.String("refund_transaction_id", refundTxn.ID), zap.Error(err))
		return res, fmt.Errorf("update order %s after refund: %w", order.ID, err)
	}
	if !claimed {
		// a concurrent call completed the same refund
		return nil, domain.ErrAlreadyRefunded
	}

	if rerr := res.ReversalError(); rerr != nil {
		res.Outcome = RefundOutcomeRefundedPendingReversal
		p.logger.Warn("refund completed with pending reversals",
			zap.String("order_id", order.ID), zap.Int("pending", len(res.PendingReversals())), zap.Error(rerr))
		for _, f := range res.PendingReversals() {
			if err := p.events.Publish(ctx, events.Event{
				Type:          events.TypeReversalFailed,
				UserID:        f.UserID,
				TransactionID: f.TransactionID,
				OrderID:       order.ID,
				Amount:        f.Amount.StringFixed(2),
				Metadata:      map[string]interface{}{"reversal_type": f.Type, "reason": f.Reason},
			}); err != nil {
				p.logger.Debug("publish reversal event failed", zap.Error(err))
			}
		}
	}

	if p.notifier != nil {
		p.notifier.Notify(ctx, order.UserID, domain.NotifRefundProcessed, "Refund processed",
			fmt.Sprintf("%s has been refunded to your wallet for order %s.", amount.StringFixed(2), order.ID),
			"/orders/"+order.ID)
	}

	if err := p.events.Publish(ctx, events.Event{
		Type:          events.TypeRefundProcessed,
		UserID:        order.UserID,
		TransactionID: refundTxn.ID,
		OrderID:       order.ID,
		Amount:        amount.StringFixed(2),
		Status:        string(res.Outcome),
		Metadata:      map[string]interface{}{"source": string(req.Source), "full": req.RefundAll, "acting_user_id": req.ActingUserID},
	}); err != nil {
		p.logger.Warn("publish refund event failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	p.logger.Info("refund processed",
		zap.String("order_id", order.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("source", string(req.Source)),
		zap.String("outcome", string(res.Outcome)))
	return res, nil
}

// committedRefund loads the refund credit already posted for the order.
func (p *RefundProcessor) committedRefund(ctx context.Context, orderID string) (*models.Transaction, error) {
	txn, err := p.recorder.FindByReference(ctx, "refund:"+orderID)
	if err != nil {
		return nil, fmt.Errorf("load refund credit for order %s: %w", orderID, err)
	}
	return txn, nil
}

// pendingPurchase returns the order's purchase charge if it is still in its
// cancellation window.
func (p *RefundProcessor) pendingPurchase(ctx context.Context, order *models.Order) *models.Transaction {
	purchases, err := p.recorder.FindByOrderAndType(ctx, order.ID, domain.TxnPurchase)
	if err != nil {
		p.logger.Warn("purchase lookup failed", zap.String("order_id", order.ID), zap.Error(err))
		return nil
	}
	now := p.clock.Now()
	for i := range purchases {
		t := &purchases[i]
		if t.UserID == order.UserID && t.Status == domain.TxnStatusPendingConfirmation && IsWithinWindow(t.CreatedAt, now) {
			return t
		}
	}
	return nil
}

func refundDescription(orderID string, req RefundRequest) string {
	kind := "Partial refund"
	if req.RefundAll {
		kind = "Refund"
	}
	switch req.Source {
	case RefundSourceCustomerCancellation:
		return fmt.Sprintf("%s for cancelled order %s", kind, orderID)
	case RefundSourceDesignerRejection:
		return fmt.Sprintf("%s for order %s rejected by designer", kind, orderID)
	}
	return fmt.Sprintf("%s for order %s", kind, orderID)
}

func uniqueProducts(items []models.OrderItem) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			out = append(out, it.ProductID)
		}
	}
	return out
}

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

type CancellationStatus struct {
	OrderID       string        `json:"order_id"`
	Charged       bool          `json:"charged"`
	Status        string        `json:"status,omitempty"`
	WithinWindow  bool          `json:"within_window"`
	Remaining     time.Duration `json:"-"`
	RemainingSecs int64         `json:"remaining_seconds"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// CheckoutService charges orders to the purchaser's wallet and lets the
// purchaser cancel within the cancellation window.
type CheckoutService struct {
	orders   *repository.OrderRepository
	catalog  ProductCatalog
	ledger   *WalletLedger
	recorder *TransactionRecorder
	window   *CancellationWindow
	refunds  *RefundProcessor
	notifier Notifier
	clock    Clock
	logger   *zap.Logger
}

func NewCheckoutService(orders *repository.OrderRepository, catalog ProductCatalog, ledger *WalletLedger, recorder *TransactionRecorder,
	window *CancellationWindow, refunds *RefundProcessor, notifier Notifier, clock Clock, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		catalog:  catalog,
		ledger:   ledger,
		recorder: recorder,
		window:   window,
		refunds:  refunds,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Charge debits the order total from the purchaser and opens the
// cancellation window in the same DB transaction.
func (s *CheckoutService) Charge(ctx context.Context, orderID, actingUserID string) (*models.Transaction, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actingUserID != "" && order.UserID != actingUserID {
		return nil, domain.ErrNotOrderOwner
	}
	txn, err := s.ledger.Post(ctx, order.UserID, order.Total, Posting{
		Type:        domain.TxnPurchase,
		Description: fmt.Sprintf("Purchase for order %s", order.ID),
		OrderID:     order.ID,
		Reference:   "purchase:" + order.ID,
		AfterPost: func(tx *gorm.DB, txn *models.Transaction) error {
			return s.window.markPending(ctx, tx, txn)
		},
	})
	if errors.Is(err, domain.ErrDuplicateReference) {
		return nil, domain.ErrAlreadyCharged
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("order charged", zap.String("order_id", order.ID), zap.String("transaction_id", txn.ID),
		zap.String("amount", txn.Amount.Abs().StringFixed(2)))
	return txn, nil
}

// CancelOrder lets the purchaser cancel while the purchase is still inside
// its window. The refund goes through the shared refund path.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID, actingUserID, reason string) (*RefundResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actingUserID {
		return nil, domain.ErrNotOrderOwner
	}
	purchase, err := s.purchaseOf(ctx, order)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, domain.ErrAlreadyRefunded
	}

	var res *RefundResult
	switch {
	case purchase.Status == domain.TxnStatusReversed:
		// an earlier cancellation reversed the purchase but did not finish
		res, err = s.resumeCancellation(ctx, order, actingUserID, reason)
	case purchase.Status != domain.TxnStatusPendingConfirmation || !IsWithinWindow(purchase.CreatedAt, s.clock.Now()):
		return nil, domain.ErrCancellationWindowClosed
	default:
		res, err = s.refunds.ProcessRefund(ctx, s.cancellationRequest(order.ID, actingUserID, reason))
	}
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
		return res, fmt.Errorf("mark order %s cancelled: %w", order.ID, err)
	}
	return res, nil
}

func (s *CheckoutService) cancellationRequest(orderID, actingUserID, reason string) RefundRequest {
	if reason == "" {
		reason = "cancelled by customer"
	}
	return RefundRequest{
		OrderID:      orderID,
		ActingUserID: actingUserID,
		Reason:       reason,
		RefundAll:    true,
		Source:       RefundSourceCustomerCancellation,
	}
}

// resumeCancellation finishes a cancellation whose purchase reversal already
// committed. A refund issued by someone else is not turned into a cancellation.
func (s *CheckoutService) resumeCancellation(ctx context.Context, order *models.Order, actingUserID, reason string) (*RefundResult, error) {
	if order.RefundStatus != domain.RefundStatusRefunded {
		return s.refunds.ProcessRefund(ctx, s.cancellationRequest(order.ID, actingUserID, reason))
	}
	if order.RefundedBy != actingUserID {
		return nil, domain.ErrCancellationWindowClosed
	}
	refundTxn, err := s.recorder.FindByReference(ctx, "refund:"+order.ID)
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		OrderID:           order.ID,
		Amount:            refundTxn.Amount,
		Full:              true,
		RefundTransaction: refundTxn,
		Outcome:           RefundOutcomeRefunded,
	}, nil
}

// RejectOrder is a designer turning down an order containing one of their
// products. The purchaser is refunded in full.
func (s *CheckoutService) RejectOrder(ctx context.Context, orderID, designerID, reason string) (*RefundResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	productIDs := uniqueProducts(order.Items)
	owns, err := s.catalog.OwnsAny(ctx, designerID, productIDs)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, domain.ErrNotProductDesigner
	}
	if reason == "" {
		reason = "rejected by designer"
	}
	res, err := s.refunds.ProcessRefund(ctx, RefundRequest{
		OrderID:      order.ID,
		ActingUserID: designerID,
		Reason:       reason,
		RefundAll:    true,
		Source:       RefundSourceDesignerRejection,
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, order.UserID, domain.NotifOrderCancelled, "Order rejected",
			fmt.Sprintf("Order %s was declined by the designer and refunded.", order.ID), "/orders/"+order.ID)
	}
	return res, nil
}

// CancellationStatus reports the window state of the order's purchase.
func (s *CheckoutService) CancellationStatus(ctx context.Context, orderID string, now time.Time) (*CancellationStatus, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	st := &CancellationStatus{OrderID: order.ID}
	purchase, err := s.purchaseOf(ctx, order)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.Charged = true
	st.Status = purchase.Status
	st.ExpiresAt = purchase.CancellationExpiryTime
	if purchase.Status == domain.TxnStatusPendingConfirmation {
		st.WithinWindow = IsWithinWindow(purchase.CreatedAt, now)
		st.Remaining = Remaining(purchase.CreatedAt, now)
		st.RemainingSecs = int64(st.Remaining / time.Second)
	}
	return st, nil
}

func (s *CheckoutService) purchaseOf(ctx context.Context, order *models.Order) (*models.Transaction, error) {
	purchases, err := s.recorder.FindByOrderAndType(ctx, order.ID, domain.TxnPurchase)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		if purchases[i].UserID == order.UserID {
			return &purchases[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no purchase for order %s", domain.ErrTransactionNotFound, order.ID)
}

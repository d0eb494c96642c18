package handler

import (
	"net/http"

	"fundhub/internal/middleware"
	"fundhub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	checkout *service.CheckoutService
	clock    service.Clock
	logger   *zap.Logger
}

func NewOrderHandler(checkout *service.CheckoutService, clock service.Clock, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{checkout: checkout, clock: clock, logger: logger}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Charge handles POST /orders/:id/charge.
func (h *OrderHandler) Charge(c *gin.Context) {
	txn, err := h.checkout.Charge(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// Cancel handles POST /orders/:id/cancel while the purchase is still in its window.
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	res, err := h.checkout.CancelOrder(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refundResponse(res))
}

// Reject handles POST /designer/orders/:id/reject.
func (h *OrderHandler) Reject(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	res, err := h.checkout.RejectOrder(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refundResponse(res))
}

// CancellationStatus handles GET /orders/:id/cancellation.
func (h *OrderHandler) CancellationStatus(c *gin.Context) {
	st, err := h.checkout.CancellationStatus(c.Request.Context(), c.Param("id"), h.clock.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// refundResponse reports the committed refund along with any revenue
// reversals an admin still has to retry.
func refundResponse(res *service.RefundResult) gin.H {
	out := gin.H{"refund": res}
	if pending := res.PendingReversals(); len(pending) > 0 {
		out["pending_reversals"] = pending
	}
	return out
}

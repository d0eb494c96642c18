package handler

import (
	"context"
	"net/http"
	"strconv"

	"fundhub/internal/domain"
	"fundhub/internal/middleware"
	"fundhub/internal/models"
	"fundhub/internal/repository"
	"fundhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminHandler struct {
	adminRepo *repository.AdminRepository
	ledger    *service.WalletLedger
	refunds   *service.RefundProcessor
	reversals *service.RevenueReversalEngine
	interest  *service.InterestEngine
	window    *service.CancellationWindow
	clock     service.Clock
	logger    *zap.Logger
}

func NewAdminHandler(core *service.Core, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminRepo: core.Admin,
		ledger:    core.Ledger,
		refunds:   core.Refunds,
		reversals: core.Reversals,
		interest:  core.Interest,
		window:    core.Window,
		clock:     core.Clock,
		logger:    logger,
	}
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminRepo.GetLedgerStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Transactions handles GET /admin/transactions?type=&status=.
func (h *AdminHandler) Transactions(c *gin.Context) {
	page, limit := parsePagination(c, "limit")
	list, total, err := h.adminRepo.ListTransactions(c.Request.Context(), c.Query("type"), c.Query("status"), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "total": total, "page": page, "limit": limit})
}

// RefundedOrders handles GET /admin/refunds.
func (h *AdminHandler) RefundedOrders(c *gin.Context) {
	page, limit := parsePagination(c, "limit")
	list, total, err := h.adminRepo.ListRefundedOrders(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "total": total, "page": page, "limit": limit})
}

// Volume handles GET /admin/volume?type=purchase&days=30.
func (h *AdminHandler) Volume(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}
	points, err := h.adminRepo.VolumeByDay(c.Request.Context(), c.DefaultQuery("type", domain.TxnPurchase), days, h.clock.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

type refundRequest struct {
	Reason    string   `json:"reason"`
	RefundAll bool     `json:"refund_all"`
	ItemIDs   []string `json:"item_ids"`
}

// RefundOrder handles POST /admin/orders/:id/refund. The refund is committed
// even when some revenue reversals fail; those come back as pending_reversals.
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.RefundAll && len(req.ItemIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refund_all or item_ids required"})
		return
	}
	res, err := h.refunds.ProcessRefund(c.Request.Context(), service.RefundRequest{
		OrderID:      c.Param("id"),
		ActingUserID: middleware.GetUserID(c),
		Reason:       req.Reason,
		RefundAll:    req.RefundAll,
		ItemIDs:      req.ItemIDs,
		Source:       service.RefundSourceAdmin,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refundResponse(res))
}

// RetryReversal handles POST /admin/reversals/:transaction_id/retry.
func (h *AdminHandler) RetryReversal(c *gin.Context) {
	res, err := h.reversals.RetryReversal(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if res.Failed() {
		c.JSON(http.StatusConflict, gin.H{"error": res.Err().Error(), "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

type adjustRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Credit handles POST /admin/wallets/:user_id/credit.
func (h *AdminHandler) Credit(c *gin.Context) {
	h.adjust(c, h.ledger.Credit, "admin credit")
}

// Debit handles POST /admin/wallets/:user_id/debit.
func (h *AdminHandler) Debit(c *gin.Context) {
	h.adjust(c, h.ledger.Debit, "admin debit")
}

func (h *AdminHandler) adjust(c *gin.Context, post func(context.Context, string, decimal.Decimal, string) (*models.Transaction, error), fallback string) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Description == "" {
		req.Description = fallback
	}
	txn, err := post(c.Request.Context(), c.Param("user_id"), req.Amount, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("wallet adjusted by admin",
		zap.String("admin_id", middleware.GetUserID(c)),
		zap.String("user_id", txn.UserID),
		zap.String("transaction_id", txn.ID),
		zap.String("amount", txn.Amount.StringFixed(2)))
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// Reconcile handles GET /admin/wallets/:user_id/reconcile.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	rec, err := h.ledger.Reconcile(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetInterestConfig handles GET /admin/interest/config.
func (h *AdminHandler) GetInterestConfig(c *gin.Context) {
	cfg, err := h.interest.GetConfig(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type interestConfigRequest struct {
	DailyRate  decimal.Decimal      `json:"daily_rate"`
	MinBalance decimal.Decimal      `json:"min_balance"`
	Tiers      models.InterestTiers `json:"tiers"`
}

// UpdateInterestConfig handles PUT /admin/interest/config.
func (h *AdminHandler) UpdateInterestConfig(c *gin.Context) {
	var req interestConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := h.interest.UpdateConfig(c.Request.Context(), req.DailyRate, req.MinBalance, req.Tiers, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// RunInterest handles POST /admin/interest/run. ?user_id= accrues a single
// wallet; otherwise every eligible wallet is swept for today.
func (h *AdminHandler) RunInterest(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.clock.Now()
	if userID := c.Query("user_id"); userID != "" {
		entry, err := h.interest.ApplyDaily(ctx, userID, now)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if entry == nil {
			c.JSON(http.StatusOK, gin.H{"status": "nothing to accrue"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry": entry})
		return
	}
	report, err := h.interest.ApplyAll(ctx, now)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PromoteCancellations handles POST /admin/cancellations/promote.
// ?user_id= limits the sweep to one user.
func (h *AdminHandler) PromoteCancellations(c *gin.Context) {
	n, err := h.window.PromoteExpired(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": n})
}

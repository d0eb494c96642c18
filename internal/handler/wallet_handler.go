package handler

import (
	"net/http"

	"fundhub/internal/middleware"
	"fundhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	ledger   *service.WalletLedger
	interest *service.InterestEngine
	currency string
	logger   *zap.Logger
}

func NewWalletHandler(ledger *service.WalletLedger, interest *service.InterestEngine, currency string, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, interest: interest, currency: currency, logger: logger}
}

// GetBalance handles GET /me/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	bal, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"balance":  bal,
		"currency": h.currency,
	})
}

// Transactions handles GET /me/wallet/transactions, newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	page, size := parsePagination(c, "page_size")
	list, total, err := h.ledger.History(c.Request.Context(), middleware.GetUserID(c), page, size)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": list,
		"total":        total,
		"page":         page,
		"page_size":    size,
	})
}

type transferRequest struct {
	ToUserID    string          `json:"to_user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Transfer handles POST /me/wallet/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.ledger.Transfer(c.Request.Context(), middleware.GetUserID(c), req.ToUserID, req.Amount, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// InterestEstimate handles GET /me/interest/estimate. An explicit ?balance=
// previews another amount; otherwise the caller's current balance is used.
func (h *WalletHandler) InterestEstimate(c *gin.Context) {
	ctx := c.Request.Context()
	var balance decimal.Decimal
	if raw := c.Query("balance"); raw != "" {
		b, err := decimal.NewFromString(raw)
		if err != nil || b.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid balance"})
			return
		}
		balance = b
	} else {
		b, err := h.ledger.Balance(ctx, middleware.GetUserID(c))
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		balance = b
	}
	est, err := h.interest.Estimate(ctx, balance)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "estimate": est})
}

// InterestHistory handles GET /me/interest/history.
func (h *WalletHandler) InterestHistory(c *gin.Context) {
	page, limit := parsePagination(c, "limit")
	list, err := h.interest.History(c.Request.Context(), middleware.GetUserID(c), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

package router

import (
	"net/http"

	"fundhub/config"
	"fundhub/internal/domain"
	"fundhub/internal/handler"
	"fundhub/internal/middleware"
	"fundhub/internal/service"
	"fundhub/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Setup(cfg *config.Config, core *service.Core, hub *ws.Hub, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger.Named("http")))

	walletHandler := handler.NewWalletHandler(core.Ledger, core.Interest, cfg.Ledger.Currency, logger)
	orderHandler := handler.NewOrderHandler(core.Checkout, core.Clock, logger)
	notificationHandler := handler.NewNotificationHandler(core.Notifications, logger)
	adminHandler := handler.NewAdminHandler(core, logger)

	// rate limiting runs after auth so it keys on the user, not the proxy IP
	authMw := []gin.HandlerFunc{middleware.AuthRequired(&cfg.JWT)}
	if limiter != nil {
		authMw = append(authMw, middleware.RateLimit(limiter))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/notifications", ws.UpgradeNotificationsWS(&cfg.JWT, hub, cfg.Server.AllowedOrigins))

	api := r.Group("/api/v1")
	{
		me := api.Group("/me")
		me.Use(authMw...)
		{
			me.GET("/wallet", walletHandler.GetBalance)
			me.GET("/wallet/transactions", walletHandler.Transactions)
			me.POST("/wallet/transfer", walletHandler.Transfer)
			me.GET("/interest/estimate", walletHandler.InterestEstimate)
			me.GET("/interest/history", walletHandler.InterestHistory)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		orders := api.Group("/orders")
		orders.Use(authMw...)
		{
			orders.POST("/:id/charge", orderHandler.Charge)
			orders.POST("/:id/cancel", orderHandler.Cancel)
			orders.GET("/:id/cancellation", orderHandler.CancellationStatus)
		}

		designer := api.Group("/designer")
		designer.Use(authMw...)
		designer.Use(middleware.RequireRole(domain.RoleDesigner))
		{
			designer.POST("/orders/:id/reject", orderHandler.Reject)
		}

		admin := api.Group("/admin")
		admin.Use(authMw...)
		admin.Use(middleware.AdminRequired(logger.Named("admin")))
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/transactions", adminHandler.Transactions)
			admin.GET("/refunds", adminHandler.RefundedOrders)
			admin.GET("/volume", adminHandler.Volume)
			admin.POST("/orders/:id/refund", adminHandler.RefundOrder)
			admin.POST("/reversals/:transaction_id/retry", adminHandler.RetryReversal)
			admin.POST("/wallets/:user_id/credit", adminHandler.Credit)
			admin.POST("/wallets/:user_id/debit", adminHandler.Debit)
			admin.GET("/wallets/:user_id/reconcile", adminHandler.Reconcile)
			admin.GET("/interest/config", adminHandler.GetInterestConfig)
			admin.PUT("/interest/config", adminHandler.UpdateInterestConfig)
			admin.POST("/interest/run", adminHandler.RunInterest)
			admin.POST("/cancellations/promote", adminHandler.PromoteCancellations)
		}
	}

	return r
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fundhub/config"
	"fundhub/internal/auth"
	"fundhub/internal/database"
	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/service"
	"fundhub/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	cfg    *config.Config
	core   *service.Core
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:   config.ServerConfig{Env: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"},
		JWT:      config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "fundhub"},
		Ledger:   config.LedgerConfig{MaxRetries: 5, Currency: "USD"},
		Interest: config.InterestConfig{DailyRate: "0.0001", MinBalance: "100"},
	}
	db, err := database.NewDB(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedInterestConfig(db, &cfg.Interest))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hub := ws.NewHub()
	core := service.NewCore(service.CoreOptions{DB: db, Hub: hub, Logger: zap.NewNop(), MaxRetries: 5, Currency: "USD"})
	return &testServer{t: t, cfg: cfg, core: core, engine: Setup(cfg, core, hub, nil, zap.NewNop())}
}

func (s *testServer) token(userID, role string) string {
	tok, err := auth.GenerateAccessToken(&s.cfg.JWT, userID, userID+"@fundhub.test", role)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) balance(token string) decimal.Decimal {
	w := s.do(http.MethodGet, "/api/v1/me/wallet", token, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Balance
}

func (s *testServer) seedOrder(orderID, userID, designerID string, price int64) {
	ctx := context.Background()
	productID := "prod-" + orderID
	require.NoError(s.t, s.core.Products.Create(ctx, &models.Product{ID: productID, Name: "Linen shirt", DesignerID: designerID}))
	total := decimal.NewFromInt(price)
	require.NoError(s.t, s.core.Orders.Create(ctx, &models.Order{
		ID: orderID, UserID: userID, Subtotal: total, Total: total,
		Status: domain.OrderStatusProcessing, RefundStatus: domain.RefundStatusNone,
		Items: []models.OrderItem{{ID: "item-" + orderID, OrderID: orderID, ProductID: productID, Price: total, Quantity: 1}},
	}))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWalletRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/v1/me/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/stats", s.token("u1", domain.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/designer/orders/o1/reject", s.token("u1", domain.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChargeAndCancelOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin-1", domain.RoleAdmin)
	customer := s.token("u1", domain.RoleCustomer)

	w := s.do(http.MethodPost, "/api/v1/admin/wallets/u1/credit", admin, gin.H{"amount": "100"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, s.balance(customer).Equal(decimal.NewFromInt(100)))

	s.seedOrder("o1", "u1", "d1", 40)

	w = s.do(http.MethodPost, "/api/v1/orders/o1/charge", customer, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, s.balance(customer).Equal(decimal.NewFromInt(60)))

	w = s.do(http.MethodPost, "/api/v1/orders/o1/charge", customer, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/orders/o1/cancellation", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st service.CancellationStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Charged)
	assert.True(t, st.WithinWindow)
	assert.Equal(t, domain.TxnStatusPendingConfirmation, st.Status)

	w = s.do(http.MethodPost, "/api/v1/orders/o1/cancel", s.token("u2", domain.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/orders/o1/cancel", customer, gin.H{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.balance(customer).Equal(decimal.NewFromInt(100)))

	w = s.do(http.MethodPost, "/api/v1/admin/orders/o1/refund", admin, gin.H{"refund_all": true})
	assert.Equal(t, http.StatusConflict, w.Code, "order already refunded")

	w = s.do(http.MethodGet, "/api/v1/admin/wallets/u1/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec service.Reconciliation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.True(t, rec.Balanced)

	w = s.do(http.MethodGet, "/api/v1/me/wallet/transactions?page=1&page_size=10", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Transactions []models.Transaction `json:"transactions"`
		Total        int64                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.EqualValues(t, 3, hist.Total)
	assert.Equal(t, domain.TxnRefund, hist.Transactions[0].Type)
}

func TestDesignerRejectAndNotifications(t *testing.T) {
	s := newTestServer(t)
	customer := s.token("u1", domain.RoleCustomer)
	_, err := s.core.Ledger.Credit(context.Background(), "u1", decimal.NewFromInt(50), "top up")
	require.NoError(t, err)
	s.seedOrder("o2", "u1", "d1", 30)

	w := s.do(http.MethodPost, "/api/v1/orders/o2/charge", customer, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/designer/orders/o2/reject", s.token("d2", domain.RoleDesigner), nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "d2 owns no product in the order")

	w = s.do(http.MethodPost, "/api/v1/designer/orders/o2/reject", s.token("d1", domain.RoleDesigner), gin.H{"reason": "out of fabric"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.balance(customer).Equal(decimal.NewFromInt(50)))

	w = s.do(http.MethodGet, "/api/v1/me/notifications", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp service.NotificationPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Notifications)
	assert.EqualValues(t, len(resp.Notifications), resp.Unread)

	w = s.do(http.MethodPut, "/api/v1/me/notifications/"+strconv.FormatUint(uint64(resp.Notifications[0].ID), 10)+"/read", customer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPut, "/api/v1/me/notifications/abc/read", customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPut, "/api/v1/me/notifications/"+strconv.FormatUint(uint64(resp.Notifications[0].ID), 10)+"/read", s.token("u2", domain.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another user's notification")

	w = s.do(http.MethodPut, "/api/v1/me/notifications/read-all", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/me/notifications?unread=true", customer, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Notifications)
	assert.Zero(t, resp.Unread)
}

func TestTransferErrors(t *testing.T) {
	s := newTestServer(t)
	customer := s.token("u1", domain.RoleCustomer)

	w := s.do(http.MethodPost, "/api/v1/me/wallet/transfer", customer, gin.H{"to_user_id": "u1", "amount": "5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/me/wallet/transfer", customer, gin.H{"to_user_id": "u2", "amount": "5"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(http.MethodPost, "/api/v1/me/wallet/transfer", customer, gin.H{"to_user_id": "u2", "amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/me/wallet/transfer", customer, gin.H{"amount": "5"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "to_user_id is required")
}

func TestInterestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin-1", domain.RoleAdmin)

	w := s.do(http.MethodGet, "/api/v1/admin/interest/config", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/v1/admin/interest/config", admin, gin.H{"daily_rate": "-0.1", "min_balance": "100"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/admin/interest/config", admin, gin.H{
		"daily_rate":  "0.0002",
		"min_balance": "50",
		"tiers":       []gin.H{{"min": "1000", "rate": "0.1"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/me/interest/estimate?balance=2000", s.token("u1", domain.RoleInvestor), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var est struct {
		Estimate service.InterestEstimate `json:"estimate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &est))
	assert.True(t, est.Estimate.AnnualRate.Equal(decimal.RequireFromString("0.1")))

	_, err := s.core.Ledger.Credit(context.Background(), "u1", decimal.NewFromInt(3650), "deposit")
	require.NoError(t, err)
	w = s.do(http.MethodPost, "/api/v1/admin/interest/run", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report service.BatchReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Credited)

	w = s.do(http.MethodPost, "/api/v1/admin/interest/run?user_id=u1", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "already accrued today")

	w = s.do(http.MethodPost, "/api/v1/admin/cancellations/promote", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRetryUnknownReversal(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/v1/admin/reversals/nope/retry", s.token("admin-1", domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

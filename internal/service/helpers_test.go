package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fundhub/config"
	"fundhub/internal/database"
	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/pkg/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentNotification struct {
	UserID, Type, Title, Message, Link string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID, notifType, title, message, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID, notifType, title, message, link})
}

func (n *recordingNotifier) ofType(notifType string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Type == notifType {
			out = append(out, s)
		}
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	core     *Core
	clock    *fakeClock
	notifier *recordingNotifier
	events   *recordingPublisher
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:service_%d?mode=memory&cache=shared", dbSeq.Add(1)),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedInterestConfig(db, &config.InterestConfig{DailyRate: "0.0001", MinBalance: "100"}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	core := NewCore(CoreOptions{
		DB:       db,
		Clock:    clock,
		Events:   publisher,
		Logger:   zap.NewNop(),
		Notifier: notifier,
	})
	return &testEnv{db: db, core: core, clock: clock, notifier: notifier, events: publisher}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func (e *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := e.core.Ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) fund(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := e.core.Ledger.Credit(context.Background(), userID, dec(amount), "top up")
	require.NoError(t, err)
}

// requireReconciled checks that the wallet equals the sum of its entries.
func (e *testEnv) requireReconciled(t *testing.T, userID string) {
	t.Helper()
	rec, err := e.core.Ledger.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.Truef(t, rec.Balanced, "user %s: balance %s, ledger sum %s", userID, rec.Balance, rec.LedgerSum)
}

func (e *testEnv) countTxns(t *testing.T, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Transaction{}).Where(where, args...).Count(&n).Error)
	return n
}

func (e *testEnv) reloadTxn(t *testing.T, id string) *models.Transaction {
	t.Helper()
	txn, err := e.core.Recorder.Get(context.Background(), id)
	require.NoError(t, err)
	return txn
}

type orderLine struct {
	id, productID, price string
	qty                  int
}

func (e *testEnv) createOrder(t *testing.T, id, userID, shipping string, lines ...orderLine) *models.Order {
	t.Helper()
	subtotal := decimal.Zero
	o := &models.Order{
		ID:           id,
		UserID:       userID,
		Shipping:     dec(shipping),
		Status:       domain.OrderStatusProcessing,
		RefundStatus: domain.RefundStatusNone,
	}
	for _, l := range lines {
		it := models.OrderItem{ID: l.id, ProductID: l.productID, Price: dec(l.price), Quantity: l.qty}
		subtotal = subtotal.Add(it.LineTotal())
		o.Items = append(o.Items, it)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.Shipping)
	require.NoError(t, e.core.Orders.Create(context.Background(), o))
	return o
}

func (e *testEnv) createProduct(t *testing.T, id, name, designerID string) {
	t.Helper()
	require.NoError(t, e.core.Products.Create(context.Background(), &models.Product{ID: id, Name: name, DesignerID: designerID}))
}

// distribute pays a revenue share or commission for an order item.
func (e *testEnv) distribute(t *testing.T, txnType, userID, orderID, productID, amount string) *models.Transaction {
	t.Helper()
	txn, err := e.core.Ledger.Post(context.Background(), userID, dec(amount), Posting{
		Type:        txnType,
		Description: txnType + " for " + productID,
		OrderID:     orderID,
		ProductID:   productID,
	})
	require.NoError(t, err)
	return txn
}

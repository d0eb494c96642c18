package service

import (
	"fundhub/internal/repository"
	"fundhub/internal/ws"
	"fundhub/pkg/cache"
	"fundhub/pkg/events"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CoreOptions struct {
	DB         *gorm.DB
	Clock      Clock
	Events     events.Publisher
	Balances   *cache.BalanceCache
	Hub        *ws.Hub
	Logger     *zap.Logger
	MaxRetries int
	Currency   string
	// Notifier overrides the stored+pushed NotificationService.
	Notifier Notifier
}

// Core wires the ledger components over one store.
type Core struct {
	Clock         Clock
	Wallets       *repository.WalletRepository
	Orders        *repository.OrderRepository
	Products      *repository.ProductRepository
	Admin         *repository.AdminRepository
	Notifications *NotificationService

	Recorder  *TransactionRecorder
	Window    *CancellationWindow
	Ledger    *WalletLedger
	Reversals *RevenueReversalEngine
	Refunds   *RefundProcessor
	Interest  *InterestEngine
	Checkout  *CheckoutService
}

func NewCore(opts CoreOptions) *Core {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	walletRepo := repository.NewWalletRepository(opts.DB, opts.Currency)
	txnRepo := repository.NewTransactionRepository(opts.DB)
	orderRepo := repository.NewOrderRepository(opts.DB)
	productRepo := repository.NewProductRepository(opts.DB)
	interestRepo := repository.NewInterestRepository(opts.DB)

	notifications := NewNotificationService(repository.NewNotificationRepository(opts.DB), opts.Hub, opts.Events, opts.Clock, opts.Logger.Named("notify"))
	var notifier Notifier = notifications
	if opts.Notifier != nil {
		notifier = opts.Notifier
	}

	recorder := NewTransactionRecorder(txnRepo, opts.Clock)
	window := NewCancellationWindow(txnRepo, opts.Clock, opts.Logger.Named("window"))
	ledger := NewWalletLedger(opts.DB, walletRepo, recorder, window, opts.Balances, opts.Events, notifier, opts.Clock, opts.Logger.Named("ledger"), opts.MaxRetries)
	reversals := NewRevenueReversalEngine(ledger, recorder, productRepo, orderRepo, notifier, opts.Logger.Named("reversal"))
	refunds := NewRefundProcessor(orderRepo, ledger, recorder, window, reversals, notifier, opts.Events, opts.Clock, opts.Logger.Named("refund"))

	return &Core{
		Clock:         opts.Clock,
		Wallets:       walletRepo,
		Orders:        orderRepo,
		Products:      productRepo,
		Admin:         repository.NewAdminRepository(opts.DB),
		Notifications: notifications,
		Recorder:      recorder,
		Window:        window,
		Ledger:        ledger,
		Reversals:     reversals,
		Refunds:       refunds,
		Interest:      NewInterestEngine(interestRepo, walletRepo, ledger, notifier, opts.Events, opts.Clock, opts.Logger.Named("interest")),
		Checkout:      NewCheckoutService(orderRepo, productRepo, ledger, recorder, window, refunds, notifier, opts.Clock, opts.Logger.Named("checkout")),
	}
}

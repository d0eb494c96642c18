package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fundhub/config"
	"fundhub/internal/database"
	"fundhub/internal/middleware"
	"fundhub/internal/router"
	"fundhub/internal/service"
	"fundhub/internal/worker"
	"fundhub/internal/ws"
	"fundhub/pkg/cache"
	"fundhub/pkg/events"
	"fundhub/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}
	if err := database.SeedInterestConfig(db, &cfg.Interest); err != nil {
		zl.Fatal("seed interest config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publishers := events.Multi{}
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Fatal("redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.Redis.Channel))
		zl.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publishers = append(publishers, events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl.Named("kafka")))
		zl.Info("kafka enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer publishers.Close()

	// a nil *redis.Client must not reach the cache as a non-nil interface
	var balances *cache.BalanceCache
	var locker *cache.Locker
	if rdb != nil {
		balances = cache.NewBalanceCache(rdb, cfg.Redis.BalanceTTL)
		locker = cache.NewLocker(rdb)
	}

	hub := ws.NewHub()
	core := service.NewCore(service.CoreOptions{
		DB:         db,
		Events:     publishers,
		Balances:   balances,
		Hub:        hub,
		Logger:     zl,
		MaxRetries: cfg.Ledger.MaxRetries,
		Currency:   cfg.Ledger.Currency,
	})

	scheduler := worker.NewScheduler(core.Window, core.Interest, locker, core.Clock, zl.Named("scheduler"),
		cfg.Cancellation.SweepInterval, cfg.Interest.SweepInterval)
	scheduler.Start(ctx)

	limiter := middleware.NewRateLimiter(cfg.Server.RatePerMinute, cfg.Server.RateBurst)
	go limiter.Run(ctx)

	engine := router.Setup(cfg, core, hub, limiter, zl)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		zl.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
	scheduler.Stop()
	zl.Info("server stopped")
}

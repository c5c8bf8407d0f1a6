package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/cache"
	"github.com/iliyamo/foodcart-booking/internal/config"
	"github.com/iliyamo/foodcart-booking/internal/database"
	"github.com/iliyamo/foodcart-booking/internal/handler"
	"github.com/iliyamo/foodcart-booking/internal/logger"
	"github.com/iliyamo/foodcart-booking/internal/middleware"
	"github.com/iliyamo/foodcart-booking/internal/queue"
	"github.com/iliyamo/foodcart-booking/internal/repository"
	"github.com/iliyamo/foodcart-booking/internal/repository/memory"
	"github.com/iliyamo/foodcart-booking/internal/router"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

func main() {
	// A missing .env is fine; the real environment wins either way.
	_ = godotenv.Load()

	cfg := config.Load()
	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bookingCfg := config.LoadBookingConfig()
	settings := service.Settings{
		Retry: service.RetryPolicy{
			Attempts: bookingCfg.RetryAttempts,
			Initial:  bookingCfg.RetryInitial,
			Max:      bookingCfg.RetryMax,
		},
		MaxRangeDays: bookingCfg.MaxRangeDays,
	}

	var (
		store repository.Store
		db    handler.Pinger
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := memory.New()
		mem.SeedDemo(time.Now())
		store = mem
		zl.Warn("using the in-memory store with demo data; bookings are lost on exit")
	default:
		sqlDB, err := database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, sqlDB); err != nil {
				return err
			}
			zl.Info("schema migrated")
		}
		store = repository.NewMySQLStore(sqlDB, bookingCfg.TxTimeout)
		db = sqlDB
	}

	rdb := config.NewRedisClient(zl)
	if rdb != nil {
		defer rdb.Close()
	}
	slots := cache.NewRedisSlotCache(config.LoadCacheConfig(), rdb, zl)

	var events service.EventPublisher = service.NopPublisher{}
	rabbitCfg := config.LoadRabbitConfig()
	if rabbitCfg.Enabled {
		pub, err := queue.NewPublisher(rabbitCfg, zl)
		if err != nil {
			// Bookings still work; lifecycle events are dropped until restart.
			zl.Error("rabbitmq publisher unavailable, booking events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			events = pub
		}
	}

	availability := service.NewAvailabilityService(store, slots, settings, zl)
	coupons := service.NewCouponService(store, settings, zl)
	admission := service.NewAdmissionService(store, slots, events, settings, zl)
	reconciler := service.NewReconcileService(store, slots, events, settings, zl)

	if rabbitCfg.Enabled {
		consumer := queue.NewPaymentConsumer(rabbitCfg, reconciler, zl)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("payment consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.RequestLogger(zl))
	router.RegisterRoutes(e, router.Handlers{
		Health:       handler.Health(db),
		Availability: handler.NewAvailabilityHandler(availability, zl),
		Bookings:     handler.NewBookingHandler(admission, reconciler, zl),
		Coupons:      handler.NewCouponHandler(coupons, zl),
		Payments:     handler.NewPaymentHandler(reconciler, zl),
	}, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl))

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

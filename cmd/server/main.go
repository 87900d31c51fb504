package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/booking"
	"github.com/iliyamo/consultation-booking/internal/catalog"
	"github.com/iliyamo/consultation-booking/internal/config"
	"github.com/iliyamo/consultation-booking/internal/database"
	"github.com/iliyamo/consultation-booking/internal/handler"
	"github.com/iliyamo/consultation-booking/internal/identity"
	"github.com/iliyamo/consultation-booking/internal/lock"
	"github.com/iliyamo/consultation-booking/internal/logging"
	"github.com/iliyamo/consultation-booking/internal/notify"
	"github.com/iliyamo/consultation-booking/internal/queue"
	"github.com/iliyamo/consultation-booking/internal/repository"
	"github.com/iliyamo/consultation-booking/internal/router"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
			logger.Fatal("Apply migrations", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Info("Redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var locks lock.Locker = lock.NewLocal()
	if cfg.LockBackend == "redis" {
		if rdb == nil {
			logger.Warn("LOCK_BACKEND=redis but redis is unreachable; using in-process locks")
		} else {
			locks = lock.NewRedis(rdb, "lock:", cfg.LockTTL)
		}
	}

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.AMQPURL != "" {
		notifier = notify.NewAMQPNotifier(cfg.AMQPURL, cfg.NotifyQueue)
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyTimeout, logger)

	cat := catalog.New(db, locks, logger)
	engine := booking.New(db, cfg.DBDriver, locks, dispatcher, logger)

	consumerDone := make(chan struct{})
	if cfg.AMQPURL != "" {
		sinks := []queue.Sink{&queue.LogFileSink{Dir: cfg.NotifyLogDir}}
		if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
			tg, err := queue.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
			if err != nil {
				logger.Warn("Telegram sink disabled", zap.Error(err))
			} else {
				sinks = append(sinks, tg)
			}
		}
		go func() {
			defer close(consumerDone)
			_ = queue.NewConsumer(cfg.AMQPURL, cfg.NotifyQueue, logger, sinks...).Run(ctx)
		}()
	} else {
		close(consumerDone)
	}

	e := router.New(router.Deps{
		DB:           db,
		Directory:    identity.NewJWTDirectory(cfg.JWTSecret, repository.NewUserRepo(db)),
		Catalog:      handler.NewCatalogHandler(cat, engine, logger),
		Reservations: handler.NewReservationHandler(engine, logger),
		Redis:        rdb,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
		Logger:       logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("Listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	<-consumerDone
}

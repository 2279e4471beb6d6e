package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"orderbot_backend/internal/catalog"
	"orderbot_backend/internal/erp"
	"orderbot_backend/internal/events"
	"orderbot_backend/internal/scheduler"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/db"
	"orderbot_backend/platform/logger"
	"orderbot_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Worker-side catalog wiring (no HTTP handlers required).
	catalogModule := catalog.NewModule(pool, nil, "", eventBus, val, log)
	erpSvc := erp.NewService(erp.NewClient(cfg, log), catalogModule.Service(), log)

	if cfg.IsERPEnabled() {
		dispatcher, err := scheduler.NewCatalogSyncDispatcher(cfg, cfg.GetERPSyncInterval(), log)
		if err != nil {
			log.Error("failed to initialize catalog sync dispatcher", "error", err)
			panic("failed to initialize catalog sync dispatcher: " + err.Error())
		}
		defer func() { _ = dispatcher.Close() }()
		go dispatcher.Run(ctx)
	} else {
		log.Warn("ERP_ENABLED is false; periodic catalog sync disabled")
	}

	worker, err := scheduler.NewWorker(cfg, erpSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

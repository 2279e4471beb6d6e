package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"orderbot_backend/internal/auth"
	"orderbot_backend/internal/bot"
	"orderbot_backend/internal/catalog"
	"orderbot_backend/internal/erp"
	"orderbot_backend/internal/events"
	apphttp "orderbot_backend/internal/http"
	"orderbot_backend/internal/http/router"
	"orderbot_backend/internal/orders"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/internal/scheduler"
	"orderbot_backend/internal/storage"
	"orderbot_backend/internal/support"
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
	log.Info("starting api", "env", cfg.Env)

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

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	rdb := initRedis(cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var uploader storage.Uploader
	if cfg.IsMinIOEnabled() {
		minioUploader, err := storage.NewMinIOUploader(cfg)
		if err != nil {
			log.Error("failed to initialize object storage", "error", err)
			panic("failed to initialize object storage: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure archive bucket", 5, 2*time.Second, func() error {
			return minioUploader.EnsureBucket(ctx, cfg.GetMinioBucketImportArchive())
		}); err != nil {
			log.Error("failed to ensure archive bucket", "error", err)
			panic("failed to ensure archive bucket: " + err.Error())
		}
		uploader = minioUploader
	} else {
		log.Warn("MINIO_ENDPOINT not configured; import archiving disabled")
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	catalogModule := catalog.NewModule(pool, uploader, cfg.GetMinioBucketImportArchive(), eventBus, val, log)
	resolverModule := resolver.NewModule(cfg, pool, rdb, catalogModule.Service(), val, log)
	authModule := auth.NewModule(pool, cfg, val, log)
	ordersModule := orders.NewModule(pool, resolverModule.Service(), eventBus, val, log)
	supportModule := support.NewModule(pool, eventBus, val, log)

	var syncEnqueuer erp.SyncEnqueuer
	if cfg.GetRedisURL() != "" {
		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Warn("scheduler client unavailable; manual syncs run inline", "error", err)
		} else {
			defer func() { _ = schedClient.Close() }()
			syncEnqueuer = schedClient
		}
	}
	erpModule := erp.NewModule(cfg, catalogModule.Service(), syncEnqueuer, log)

	botModule := bot.NewModule(cfg,
		resolverModule.Service(),
		ordersModule.Service(),
		authModule.Service(),
		supportModule.Service(),
		catalogModule.Service(),
		eventBus,
		log,
	)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			catalogModule,
			resolverModule,
			ordersModule,
			supportModule,
			erpModule,
			botModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		log.Warn("REDIS_URL not configured; token and parse caches disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return redis.NewClient(opt)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

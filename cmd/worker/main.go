package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/procura-hq/procura/internal/app"
	"github.com/procura-hq/procura/internal/catalog/categories"
	"github.com/procura-hq/procura/internal/catalog/vendors"
	"github.com/procura-hq/procura/internal/platform/cache"
	"github.com/procura-hq/procura/internal/platform/db"
	"github.com/procura-hq/procura/internal/purchasing"
	"github.com/procura-hq/procura/internal/shared"
	"github.com/procura-hq/procura/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// The rebuild task only touches vendor links, categories and the
	// shared index cache, so the worker wires just that slice.
	vendorsService := vendors.NewService(vendors.NewRepository(pool))
	categoriesService := categories.NewService(categories.NewRepository(pool))
	indexCache := purchasing.NewIndexCache(redisClient, cfg.VendorIndexTTL)
	purchasingService := purchasing.NewService(purchasing.ServiceParams{
		Vendors:    vendorsService,
		Categories: categoriesService,
		IndexCache: indexCache,
		Logger:     logger,
	})

	idempotencyStore := shared.NewIdempotencyStore(pool)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: &jobs.Handlers{
			Logger: logger,
			Rebuild: func(ctx context.Context) error {
				_, err := purchasingService.RebuildTypeIndex(ctx)
				return err
			},
			Cleaner:   idempotencyStore,
			Retention: cfg.IdempotencyRetention,
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewIndexRebuildTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: jobs.NewCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

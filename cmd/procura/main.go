package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procura-hq/procura/internal/app"
	"github.com/procura-hq/procura/internal/audit"
	"github.com/procura-hq/procura/internal/auth"
	"github.com/procura-hq/procura/internal/catalog/categories"
	"github.com/procura-hq/procura/internal/catalog/items"
	catalogservices "github.com/procura-hq/procura/internal/catalog/services"
	"github.com/procura-hq/procura/internal/catalog/vendors"
	"github.com/procura-hq/procura/internal/platform/cache"
	"github.com/procura-hq/procura/internal/platform/db"
	"github.com/procura-hq/procura/internal/purchasing"
	"github.com/procura-hq/procura/internal/rbac"
	"github.com/procura-hq/procura/internal/receiving"
	"github.com/procura-hq/procura/internal/requisitions"
	"github.com/procura-hq/procura/internal/shared"
	"github.com/procura-hq/procura/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	authRepo := auth.NewRepository(pool)
	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(authRepo, tokenStore)
	authHandler := auth.NewHandler(logger, authService)

	rbacService := rbac.NewService(pool, redisClient)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	categoriesRepo := categories.NewRepository(pool)
	categoriesService := categories.NewService(categoriesRepo)
	categoriesHandler := categories.NewHandler(logger, categoriesService, rbacMiddleware)

	vendorsRepo := vendors.NewRepository(pool)
	vendorsService := vendors.NewService(vendorsRepo)
	vendorsHandler := vendors.NewHandler(logger, vendorsService, rbacMiddleware)

	itemsRepo := items.NewRepository(pool)
	itemsService := items.NewService(itemsRepo)
	itemsHandler := items.NewHandler(logger, itemsService, rbacMiddleware)

	servicesRepo := catalogservices.NewRepository(pool)
	servicesManager := catalogservices.NewManager(servicesRepo)
	servicesHandler := catalogservices.NewHandler(logger, servicesManager, rbacMiddleware)

	requisitionsRepo := requisitions.NewRepository(pool)
	requisitionsService := requisitions.NewService(requisitionsRepo, auditLogger)
	requisitionsHandler := requisitions.NewHandler(logger, requisitionsService, rbacMiddleware)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	draftStore := purchasing.NewDraftStore(redisClient, cfg.DraftTTL)
	indexCache := purchasing.NewIndexCache(redisClient, cfg.VendorIndexTTL)
	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasing.ServiceParams{
		Vendors:      vendorsService,
		Categories:   categoriesService,
		Items:        itemsService,
		Services:     servicesManager,
		Requisitions: requisitionsService,
		Drafts:       draftStore,
		IndexCache:   indexCache,
		Repository:   purchasingRepo,
		Audit:        auditLogger,
		Idempotency:  idempotencyStore,
		Notifier:     jobsClient,
		Logger:       logger,
	})
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, rbacMiddleware)

	// Catalog writes invalidate the derived vendor-type index and queue a
	// rebuild so the next suggestion request does not pay for it inline.
	onCatalogChange := func(ctx context.Context) {
		if err := indexCache.Invalidate(ctx); err != nil {
			logger.Warn("invalidate vendor index", slog.Any("error", err))
		}
		if err := jobsClient.EnqueueIndexRebuild(ctx); err != nil {
			logger.Warn("enqueue vendor index rebuild", slog.Any("error", err))
		}
	}
	vendorsService.SetChangeListener(onCatalogChange)
	categoriesService.SetChangeListener(onCatalogChange)

	receivingRepo := receiving.NewRepository(pool, itemsRepo)
	receivingService := receiving.NewService(receivingRepo, purchasingService, requisitionsService, auditLogger, idempotencyStore, logger)
	receivingHandler := receiving.NewHandler(logger, receivingService, rbacMiddleware)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		AuthHandler:        authHandler,
		CategoriesHandler:  categoriesHandler,
		VendorsHandler:     vendorsHandler,
		ItemsHandler:       itemsHandler,
		ServicesHandler:    servicesHandler,
		RequisitionHandler: requisitionsHandler,
		PurchasingHandler:  purchasingHandler,
		ReceivingHandler:   receivingHandler,
		AuditHandler:       auditHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

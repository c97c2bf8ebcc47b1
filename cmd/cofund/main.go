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

	"github.com/cofund/cofund/internal/app"
	"github.com/cofund/cofund/internal/audit"
	"github.com/cofund/cofund/internal/campaigns"
	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/funds"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/internal/platform/cache"
	"github.com/cofund/cofund/internal/platform/db"
	"github.com/cofund/cofund/internal/products"
	"github.com/cofund/cofund/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	recorder := audit.NewRecorder(queueClient, logger)

	directoryRepo := directory.NewRepository(pool)
	productsRepo := products.NewRepository(pool)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo, logger)
	periodsHandler := periods.NewHandler(logger, periodsService)

	campaignsRepo := campaigns.NewRepository(pool)
	campaignsService := campaigns.NewService(campaignsRepo, periodsService, directoryRepo, productsRepo, recorder, logger)
	campaignsHandler := campaigns.NewHandler(logger, campaignsService)

	fundsRepo := funds.NewRepository(pool)
	overviewCache := funds.NewOverviewCache(redisClient, cfg.OverviewCacheTTL)
	fundsService := funds.NewService(fundsRepo, directoryRepo, periodsService, campaignsService, overviewCache, recorder, logger)
	fundsHandler := funds.NewHandler(logger, fundsService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Resolver:         directoryRepo,
		PeriodsHandler:   periodsHandler,
		CampaignsHandler: campaignsHandler,
		FundsHandler:     fundsHandler,
		JobsHandler:      jobHandler,
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

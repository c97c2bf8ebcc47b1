package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/cofund/cofund/internal/app"
	"github.com/cofund/cofund/internal/audit"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/internal/platform/db"
	"github.com/cofund/cofund/jobs"
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

	auditRepo := audit.NewRepository(pool)
	auditJob := audit.NewRecordJob(auditRepo, logger)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo, logger)
	rolloverJob := periods.NewRolloverJob(periodsService, logger)

	rolloverTask, err := jobs.NewPeriodRolloverTask()
	if err != nil {
		logger.Error("build rollover task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRecord, Handler: auditJob.Handle},
			{Type: jobs.TaskPeriodRollover, Handler: rolloverJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RolloverCron, Task: rolloverTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-suite/meridian/internal/app"
	"github.com/meridian-suite/meridian/internal/platform/cache"
	"github.com/meridian-suite/meridian/internal/platform/db"
	"github.com/meridian-suite/meridian/internal/rbac"
	"github.com/meridian-suite/meridian/internal/rbac/pgstore"
	"github.com/meridian-suite/meridian/jobs"
)

func main() {
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

	roleStore := pgstore.NewRoleStore(pool)
	permissionStore := pgstore.NewPermissionStore(pool)
	engine := rbac.NewEngine(logger, roleStore, permissionStore, rbac.NewCache(), nil)
	admin := rbac.NewAdminService(logger, roleStore, permissionStore, engine, nil)

	expiryTask, err := jobs.NewExpiryScanTask(jobs.ExpiryScanPayload{Window: cfg.ExpiryWarnWindow})
	if err != nil {
		logger.Error("build expiry scan task", slog.Any("error", err))
		os.Exit(1)
	}
	trimTask, err := jobs.NewUsageTrimTask(jobs.UsageTrimPayload{Stream: cfg.UsageStream, MaxLen: cfg.UsageStreamMaxLen})
	if err != nil {
		logger.Error("build usage trim task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExpiryScan, Handler: jobs.NewExpiryScanHandler(admin, logger)},
			{Type: jobs.TaskUsageTrim, Handler: jobs.NewUsageTrimHandler(redisClient, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpiryScanCron, Task: expiryTask},
			{Spec: "30 3 * * *", Task: trimTask},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

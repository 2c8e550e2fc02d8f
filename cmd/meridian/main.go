package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-suite/meridian/internal/app"
	"github.com/meridian-suite/meridian/internal/platform/db"
	"github.com/meridian-suite/meridian/internal/rbac"
	rbachttp "github.com/meridian-suite/meridian/internal/rbac/http"
	"github.com/meridian-suite/meridian/internal/rbac/pgstore"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	roleStore := pgstore.NewRoleStore(pool)
	permissionStore := pgstore.NewPermissionStore(pool)

	usage := rbac.NewRedisUsageRecorder(redisClient, cfg.UsageStream, cfg.UsageStreamMaxLen)
	cache := rbac.NewCache()
	engine := rbac.NewEngine(logger, roleStore, permissionStore, cache, usage)

	bootstrapper := rbac.NewBootstrapper(logger, roleStore, permissionStore, nil, cfg.AdminPassword)
	admin := rbac.NewAdminService(logger, roleStore, permissionStore, engine, bootstrapper)

	if err := bootstrapper.InitializeSystemRoles(ctx, cfg.AdminUserID); err != nil {
		logger.Error("initialize system roles", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.AdminUserID != 0 {
		if err := bootstrapper.CreateAdminUser(ctx, cfg.AdminUserID, 0); err != nil {
			logger.Error("create admin user", slog.Any("error", err))
			os.Exit(1)
		}
	}

	rbacMiddleware := rbac.Middleware{Engine: engine, Logger: logger}
	handler := rbachttp.NewHandler(logger, admin, engine, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		RBACHandler: handler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http server", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

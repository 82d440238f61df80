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
	"github.com/redis/go-redis/v9"

	"github.com/hearthguard/hearthguard/internal/app"
	"github.com/hearthguard/hearthguard/internal/approvals"
	"github.com/hearthguard/hearthguard/internal/audit"
	audithttp "github.com/hearthguard/hearthguard/internal/audit/http"
	"github.com/hearthguard/hearthguard/internal/auth"
	"github.com/hearthguard/hearthguard/internal/members"
	"github.com/hearthguard/hearthguard/internal/observability"
	"github.com/hearthguard/hearthguard/internal/overrides"
	"github.com/hearthguard/hearthguard/internal/permissions"
	"github.com/hearthguard/hearthguard/internal/platform/cache"
	"github.com/hearthguard/hearthguard/internal/platform/db"
	"github.com/hearthguard/hearthguard/internal/ratelimit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/resolver"
	"github.com/hearthguard/hearthguard/internal/shared"
	"github.com/hearthguard/hearthguard/internal/snapshot"
	"github.com/hearthguard/hearthguard/internal/windows"
	"github.com/hearthguard/hearthguard/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: 20, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	policyCache := cache.NewVersioned(redisClient, "hearthguard", cfg.SnapshotTTL)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	memberService := members.NewService(members.NewRepository(dbpool), auditService)
	permissionService := permissions.NewService(permissions.NewRepository(dbpool), auditService, policyCache)
	overrideService := overrides.NewService(overrides.NewRepository(dbpool), memberService, auditService, policyCache)
	windowService := windows.NewService(windows.NewRepository(dbpool), memberService, auditService, policyCache)

	var counter ratelimit.Counter
	switch cfg.RateLimitBackend {
	case ratelimit.BackendPostgres:
		counter = ratelimit.NewPostgresCounter(dbpool)
	default:
		counter = ratelimit.NewRedisCounter(redisClient, "hearthguard:rl")
	}
	logger.Info("rate limiter backend", slog.String("backend", cfg.RateLimitBackend))

	policyResolver := resolver.New(permissionService, overrideService, windowService, ratelimit.NewLimiter(counter))
	checker := resolver.NewChecker(memberService, policyResolver, auditService, metrics, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	approvalService := approvals.NewService(approvals.NewRepository(dbpool), idempotencyStore, memberService, jobsClient, auditService, logger, approvals.Config{DefaultTTL: cfg.ApprovalTTL})

	snapshotService := snapshot.NewService(permissionService, overrideService, windowService, policyCache)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTIssuer)
	rbacMiddleware := rbac.Middleware{Roles: memberService, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		RBACMiddleware:     rbacMiddleware,
		PermissionsHandler: permissions.NewHandler(logger, permissionService),
		MembersHandler:     members.NewHandler(logger, memberService),
		OverridesHandler:   overrides.NewHandler(logger, overrideService),
		WindowsHandler:     windows.NewHandler(logger, windowService),
		ApprovalsHandler:   approvals.NewHandler(logger, approvalService),
		CheckHandler:       resolver.NewHandler(logger, checker),
		SnapshotHandler:    snapshot.NewHandler(logger, snapshotService),
		AuditHandler:       audithttp.NewHandler(logger, auditService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hearthguard/hearthguard/internal/app"
	"github.com/hearthguard/hearthguard/internal/approvals"
	"github.com/hearthguard/hearthguard/internal/audit"
	jobmetrics "github.com/hearthguard/hearthguard/internal/jobs"
	"github.com/hearthguard/hearthguard/internal/members"
	"github.com/hearthguard/hearthguard/internal/platform/db"
	"github.com/hearthguard/hearthguard/internal/ratelimit"
	"github.com/hearthguard/hearthguard/internal/shared"
	"github.com/hearthguard/hearthguard/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: 5, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	auditService := audit.NewService(audit.NewRepository(pool))
	memberService := members.NewService(members.NewRepository(pool), auditService)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	// The worker never creates requests, so it needs no notifier.
	approvalService := approvals.NewService(approvals.NewRepository(pool), idempotencyStore, memberService, nil, auditService, logger, approvals.Config{DefaultTTL: cfg.ApprovalTTL})

	notifyJob := jobs.NewApprovalNotifyJob(memberService, approvalService, nil, logger, metrics)
	sweepJob := jobs.NewApprovalSweepJob(approvalService, logger, metrics)

	var counters jobs.CounterPruner
	if cfg.RateLimitBackend == ratelimit.BackendPostgres {
		counters = ratelimit.NewPostgresCounter(pool)
	}
	pruneJob := jobs.NewPruneJob(counters, idempotencyStore, logger, metrics)

	pruneTask, err := jobs.NewPruneTask(jobs.PrunePayload{CounterRetentionDays: cfg.CounterRetention})
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskApprovalNotify, Handler: notifyJob.Handle},
			{Type: jobs.TaskApprovalSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskMaintenancePrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ApprovalSweepCron, Task: jobs.NewApprovalSweepTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: cfg.PruneCron, Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/hearthguard/hearthguard/internal/jobs"
)

// CounterPruner deletes rate counters of days before cutoff.
type CounterPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeyCleaner deletes idempotency keys older than a retention.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// PruneJob removes stale rate counters and idempotency keys. Either
// dependency may be nil; Redis counters expire on their own.
type PruneJob struct {
	Counters CounterPruner
	Keys     KeyCleaner
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewPruneJob constructs the job handler.
func NewPruneJob(counters CounterPruner, keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *PruneJob {
	return &PruneJob{Counters: counters, Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle executes the maintenance task.
func (j *PruneJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil {
		return errors.New("prune: not configured")
	}
	var payload PrunePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.CounterRetentionDays <= 0 {
		payload.CounterRetentionDays = 7
	}
	if payload.IdempotencyTTLHours <= 0 {
		payload.IdempotencyTTLHours = 72
	}

	tracker := metricsOr(j.Metrics).Track(TaskMaintenancePrune)
	logger := loggerOr(j.Logger, TaskMaintenancePrune)

	if j.Counters != nil {
		cutoff := j.now().AddDate(0, 0, -payload.CounterRetentionDays)
		n, err := j.Counters.Prune(ctx, cutoff)
		if err != nil {
			logger.Error("prune rate counters", slog.Any("error", err))
			return tracker.End(err)
		}
		metricsOr(j.Metrics).AddAffected(TaskMaintenancePrune, n)
		logger.Info("pruned rate counters", slog.Int64("rows", n), slog.Time("cutoff", cutoff))
	}
	if j.Keys != nil {
		if err := j.Keys.Cleanup(ctx, time.Duration(payload.IdempotencyTTLHours)*time.Hour); err != nil {
			logger.Error("cleanup idempotency keys", slog.Any("error", err))
			return tracker.End(err)
		}
	}
	return tracker.End(nil)
}

func (j *PruneJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *PruneJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

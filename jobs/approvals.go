package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/hearthguard/hearthguard/internal/approvals"
	jobmetrics "github.com/hearthguard/hearthguard/internal/jobs"
	"github.com/hearthguard/hearthguard/internal/members"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MemberDirectory lists the members of a federation.
type MemberDirectory interface {
	List(ctx context.Context, federationID string) ([]members.Member, error)
}

// ApprovalReader loads one request with lazy expiry applied.
type ApprovalReader interface {
	Get(ctx context.Context, federationID string, id uuid.UUID) (approvals.Request, error)
}

// Delivery hands one notification to an approver.
type Delivery func(ctx context.Context, approver members.Member, req approvals.Request) error

// ApprovalNotifyJob notifies every member allowed to decide a request.
type ApprovalNotifyJob struct {
	Members  MemberDirectory
	Requests ApprovalReader
	Deliver  Delivery
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewApprovalNotifyJob constructs the job handler. A nil deliver logs the
// notification instead of sending it anywhere.
func NewApprovalNotifyJob(directory MemberDirectory, requests ApprovalReader, deliver Delivery, logger *slog.Logger, metrics *jobmetrics.Metrics) *ApprovalNotifyJob {
	return &ApprovalNotifyJob{Members: directory, Requests: requests, Deliver: deliver, Logger: logger, Metrics: metrics}
}

// Handle executes the notify job.
func (j *ApprovalNotifyJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Members == nil || j.Requests == nil {
		return errors.New("approval notify: dependencies not configured")
	}
	var payload ApprovalNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.RequestID)
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := metricsOr(j.Metrics).Track(TaskApprovalNotify)
	logger := loggerOr(j.Logger, TaskApprovalNotify)

	req, err := j.Requests.Get(ctx, payload.FederationID, id)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Warn("approval request vanished", slog.String("request_id", payload.RequestID))
		return tracker.End(nil)
	}
	if err != nil {
		return tracker.End(err)
	}
	if req.Status != approvals.StatusPending {
		logger.Info("approval already settled", slog.String("request_id", payload.RequestID), slog.String("status", string(req.Status)))
		return tracker.End(nil)
	}

	list, err := j.Members.List(ctx, req.FederationID)
	if err != nil {
		return tracker.End(err)
	}
	approvers := Approvers(list, req)
	if len(approvers) == 0 {
		logger.Warn("no eligible approvers", slog.String("federation_id", req.FederationID), slog.String("request_id", payload.RequestID))
		return tracker.End(nil)
	}
	for _, m := range approvers {
		if err := j.deliver(ctx, logger, m, req); err != nil {
			logger.Error("deliver approval notification", slog.String("approver", m.MemberID), slog.Any("error", err))
			return tracker.End(err)
		}
	}
	metricsOr(j.Metrics).AddAffected(TaskApprovalNotify, int64(len(approvers)))
	return tracker.End(nil)
}

func (j *ApprovalNotifyJob) deliver(ctx context.Context, logger *slog.Logger, approver members.Member, req approvals.Request) error {
	if j.Deliver != nil {
		return j.Deliver(ctx, approver, req)
	}
	logger.Info("approval pending",
		slog.String("approver", approver.MemberID),
		slog.String("request_id", req.ID.String()),
		slog.String("member_id", req.MemberID),
		slog.String("event_type", string(req.EventType)),
		slog.Time("expires_at", req.ExpiresAt))
	return nil
}

// Approvers returns the members of req's federation that may decide it,
// excluding the requester.
func Approvers(list []members.Member, req approvals.Request) []members.Member {
	floor := req.RequiredMinApproverRole
	if floor == "" {
		floor = rbac.MinApproverRole()
	}
	var out []members.Member
	for _, m := range list {
		if m.FederationID != req.FederationID || m.MemberID == req.MemberID {
			continue
		}
		if rbac.AtLeast(m.Role, floor) {
			out = append(out, m)
		}
	}
	return out
}

// Sweeper materialises lazily expired requests.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ApprovalSweepJob runs the periodic expiry sweep.
type ApprovalSweepJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewApprovalSweepJob constructs the job handler.
func NewApprovalSweepJob(sweeper Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *ApprovalSweepJob {
	return &ApprovalSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *ApprovalSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("approval sweep: dependencies not configured")
	}
	tracker := metricsOr(j.Metrics).Track(TaskApprovalSweep)
	n, err := j.Sweeper.SweepExpired(ctx, j.now())
	if err != nil {
		loggerOr(j.Logger, TaskApprovalSweep).Error("sweep expired approvals", slog.Any("error", err))
		return tracker.End(err)
	}
	metricsOr(j.Metrics).AddAffected(TaskApprovalSweep, int64(n))
	if n > 0 {
		loggerOr(j.Logger, TaskApprovalSweep).Info("expired approval requests", slog.Int("count", n))
	}
	return tracker.End(nil)
}

func (j *ApprovalSweepJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *ApprovalSweepJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

func metricsOr(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOr(l *slog.Logger, job string) *slog.Logger {
	if l != nil {
		return l.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskApprovalNotify fans a new approval request out to eligible approvers.
	TaskApprovalNotify = "approvals:notify"
	// TaskApprovalSweep materialises lazily expired approval requests.
	TaskApprovalSweep = "approvals:sweep"
	// TaskMaintenancePrune drops stale rate counters and idempotency keys.
	TaskMaintenancePrune = "maintenance:prune"
)

// ApprovalNotifyPayload identifies the request approvers should hear about.
type ApprovalNotifyPayload struct {
	FederationID string    `json:"federation_id"`
	RequestID    string    `json:"request_id"`
	MemberID     string    `json:"member_id"`
	EventType    string    `json:"event_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewApprovalNotifyTask constructs an Asynq task.
func NewApprovalNotifyTask(payload ApprovalNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApprovalNotify, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewApprovalSweepTask builds the periodic expiry sweep.
func NewApprovalSweepTask() *asynq.Task {
	return asynq.NewTask(TaskApprovalSweep, nil, asynq.Queue(QueueDefault))
}

// PrunePayload configures retention for the maintenance task.
type PrunePayload struct {
	CounterRetentionDays int `json:"counter_retention_days"`
	IdempotencyTTLHours  int `json:"idempotency_ttl_hours"`
}

// NewPruneTask builds the maintenance task. Non-positive values fall back to
// 7 days of counters and 72 hours of idempotency keys.
func NewPruneTask(payload PrunePayload) (*asynq.Task, error) {
	if payload.CounterRetentionDays <= 0 {
		payload.CounterRetentionDays = 7
	}
	if payload.IdempotencyTTLHours <= 0 {
		payload.IdempotencyTTLHours = 72
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMaintenancePrune, data, asynq.Queue(QueueDefault)), nil
}

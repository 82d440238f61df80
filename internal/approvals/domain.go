package approvals

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// ErrNotPending is returned when deciding a request that is no longer pending.
var ErrNotPending = errors.New("approvals: request is not pending")

// Request is an asynchronous secondary authorization.
type Request struct {
	ID                      uuid.UUID      `json:"id"`
	FederationID            string         `json:"federationId"`
	MemberID                string         `json:"memberId"`
	EventType               rbac.EventType `json:"eventType"`
	PayloadRef              string         `json:"payloadRef"`
	RequiredMinApproverRole rbac.Role      `json:"requiredMinApproverRole"`
	Status                  Status         `json:"status"`
	CreatedAt               time.Time      `json:"createdAt"`
	ExpiresAt               time.Time      `json:"expiresAt"`
	DecidedBy               *string        `json:"decidedBy,omitempty"`
	DecidedAt               *time.Time     `json:"decidedAt,omitempty"`
	Reason                  *string        `json:"reason,omitempty"`
}

// withLazyExpiry reports the status a reader should see at now.
func (r Request) withLazyExpiry(now time.Time) Request {
	if r.Status == StatusPending && now.After(r.ExpiresAt) {
		r.Status = StatusExpired
	}
	return r
}

// CreateInput is the request body for a new approval request.
type CreateInput struct {
	MemberID   string `json:"memberId,omitempty"`
	EventType  string `json:"eventType" validate:"required"`
	PayloadRef string `json:"payloadRef" validate:"required,max=512"`
	TTLSeconds int    `json:"ttlSeconds,omitempty" validate:"omitempty,min=60,max=604800"`
}

// DecideInput is the request body for a decision.
type DecideInput struct {
	Approved *bool  `json:"approved" validate:"required"`
	Reason   string `json:"reason" validate:"max=1000"`
}

// Decision carries the terminal fields written by Decide.
type Decision struct {
	Status    Status
	DecidedBy string
	DecidedAt time.Time
	Reason    string
}

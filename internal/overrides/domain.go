package overrides

import (
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Override is a per-member exception to a role rule. Rows are never deleted;
// revoking sets ExpiresAt.
type Override struct {
	ID           uuid.UUID      `json:"id"`
	FederationID string         `json:"federationId"`
	MemberID     string         `json:"memberId"`
	EventType    rbac.EventType `json:"eventType"`
	Allowed      bool           `json:"allowed"`
	Reason       string         `json:"reason"`
	CreatedBy    string         `json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"`
}

// ActiveAt reports whether the override is in force at now.
func (o Override) ActiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// CreateInput is the request body for a new override.
type CreateInput struct {
	MemberID  string     `json:"memberId" validate:"required"`
	EventType string     `json:"eventType" validate:"required"`
	Allowed   bool       `json:"allowed"`
	Reason    string     `json:"reason" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

package permissions

import (
	"time"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// RolePermission is the base rule for one (federation, role, event type).
// When CanSign is false the other fields are not consulted.
type RolePermission struct {
	FederationID     string         `json:"federationId"`
	Role             rbac.Role      `json:"role"`
	EventType        rbac.EventType `json:"eventType"`
	CanSign          bool           `json:"canSign"`
	RequiresApproval bool           `json:"requiresApproval"`
	MaxDailyCount    *int           `json:"maxDailyCount,omitempty"`
	ConfiguredBy     string         `json:"configuredBy,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt,omitempty"`
}

// Rule is the wire form of one rule inside a batch.
type Rule struct {
	EventType        string `json:"eventType" validate:"required"`
	CanSign          bool   `json:"canSign"`
	RequiresApproval bool   `json:"requiresApproval"`
	MaxDailyCount    *int   `json:"maxDailyCount,omitempty" validate:"omitempty,min=1"`
}

// SetBatchRequest replaces every rule of one role.
type SetBatchRequest struct {
	Permissions []Rule `json:"permissions" validate:"dive"`
}

// Change is one draft edit addressed by role and event type.
type Change struct {
	Role string `json:"role" validate:"required"`
	Rule
}

// PatchRequest carries a multi-role draft.
type PatchRequest struct {
	Changes []Change `json:"changes" validate:"required,min=1,dive"`
}

// Key addresses a rule inside a federation.
type Key struct {
	Role      rbac.Role
	EventType rbac.EventType
}

func (p RolePermission) key() Key {
	return Key{Role: p.Role, EventType: p.EventType}
}

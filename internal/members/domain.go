package members

import (
	"time"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Member is one principal inside a federation.
type Member struct {
	FederationID string    `json:"federationId"`
	MemberID     string    `json:"memberId"`
	Role         rbac.Role `json:"role"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpsertInput carries the mutable fields of a member.
type UpsertInput struct {
	Role        string `json:"role" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=120"`
}

// ChangeRoleInput requests a role change for an existing member.
type ChangeRoleInput struct {
	Role string `json:"role" validate:"required"`
}

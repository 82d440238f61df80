package audit

import (
	"errors"
	"time"
)

// Action mengidentifikasi jenis kejadian yang dicatat.
const (
	ActionPermissionCheck    = "permission.check"
	ActionRolePermissionsSet = "role_permissions.set"
	ActionOverrideCreate     = "override.create"
	ActionOverrideRevoke     = "override.revoke"
	ActionWindowCreate       = "window.create"
	ActionWindowDelete       = "window.delete"
	ActionApprovalCreate     = "approval.create"
	ActionApprovalDecide     = "approval.decide"
	ActionApprovalExpire     = "approval.expire"
	ActionMemberUpsert       = "member.upsert"
	ActionMemberRoleChange   = "member.role_change"
)

// ErrInvalidEntry menandakan entri audit tidak lengkap.
var ErrInvalidEntry = errors.New("audit: entry requires federation/actor/action/entity/entity_id")

// Entry adalah satu baris append-only pada audit_logs.
type Entry struct {
	ID           string         `json:"id"`
	FederationID string         `json:"federationId"`
	ActorID      string         `json:"actorId"`
	Action       string         `json:"action"`
	Entity       string         `json:"entity"`
	EntityID     string         `json:"entityId"`
	Meta         map[string]any `json:"meta,omitempty"`
	At           time.Time      `json:"at"`
}

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	FederationID string
	From         time.Time
	To           time.Time
	Actor        string
	Entity       string
	Action       string
	Page         int
	PageSize     int
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

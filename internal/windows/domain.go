package windows

import (
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// ScopeType says whether a window applies to a role or to one member.
type ScopeType string

const (
	ScopeRole   ScopeType = "role"
	ScopeMember ScopeType = "member"
)

// Type is the kind of temporal gate.
type Type string

const (
	// TypeScheduled recurs weekly in a named timezone.
	TypeScheduled Type = "scheduled"
	// TypeTemporary opens a one-off interval.
	TypeTemporary Type = "temporary"
	// TypeCooldown blocks until it expires.
	TypeCooldown Type = "cooldown"
)

// Window is a temporal gate or blocker layered over the base decision.
type Window struct {
	ID           uuid.UUID      `json:"id"`
	FederationID string         `json:"federationId"`
	ScopeType    ScopeType      `json:"scopeType"`
	ScopeID      string         `json:"scopeId"`
	EventType    rbac.EventType `json:"eventType"`
	WindowType   Type           `json:"windowType"`
	StartTime    string         `json:"startTime,omitempty"`
	EndTime      string         `json:"endTime,omitempty"`
	DaysOfWeek   []int          `json:"daysOfWeek,omitempty"`
	Timezone     string         `json:"timezone,omitempty"`
	StartsAt     *time.Time     `json:"startsAt,omitempty"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"`
	CreatedBy    string         `json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Verdict is the combined verdict of every window for one scope pair.
type Verdict struct {
	ScheduleGatePass bool `json:"scheduleGatePass"`
	CooldownBlocking bool `json:"cooldownBlocking"`
}

// CreateInput is the request body for a new window.
type CreateInput struct {
	ScopeType  string     `json:"scopeType" validate:"required,oneof=role member"`
	ScopeID    string     `json:"scopeId" validate:"required"`
	EventType  string     `json:"eventType" validate:"required"`
	WindowType string     `json:"windowType" validate:"required,oneof=scheduled temporary cooldown"`
	StartTime  string     `json:"startTime,omitempty"`
	EndTime    string     `json:"endTime,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty" validate:"omitempty,dive,min=0,max=6"`
	Timezone   string     `json:"timezone,omitempty"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

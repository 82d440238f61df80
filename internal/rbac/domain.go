package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole indicates a role outside the closed set.
var ErrUnknownRole = errors.New("rbac: unknown role")

// ErrUnknownEventType indicates an event type outside the closed set.
var ErrUnknownEventType = errors.New("rbac: unknown event type")

// Role is the position a member holds inside a federation.
type Role string

const (
	// RolePrivate has sovereign authority over the member's own resources only.
	RolePrivate Role = "private"
	// RoleOffspring is the lowest managed role.
	RoleOffspring Role = "offspring"
	// RoleAdult is a regular adult member.
	RoleAdult Role = "adult"
	// RoleSteward administers day to day policy.
	RoleSteward Role = "steward"
	// RoleGuardian holds full administrative authority.
	RoleGuardian Role = "guardian"
)

// Hierarchical reports whether the role takes part in the dominance order.
func (r Role) Hierarchical() bool {
	_, ok := Level(r)
	return ok
}

// EventType identifies a category of signable action.
type EventType string

const (
	EventPayment             EventType = "payment"
	EventInvoice             EventType = "invoice"
	EventTreasuryAccess      EventType = "treasury_access"
	EventLightningZap        EventType = "lightning_zap"
	EventSpendingLimitChange EventType = "spending_limit_change"
	EventSocialPost          EventType = "social_post"
	EventDirectMessage       EventType = "direct_message"
	EventProfileUpdate       EventType = "profile_update"
	EventMemberInvite        EventType = "member_invite"
	EventMemberRemove        EventType = "member_remove"
	EventRoleChange          EventType = "role_change"
	EventPolicyUpdate        EventType = "policy_update"
	EventKeyRotation         EventType = "key_rotation"
)

// Category groups event types for display. It never affects resolution.
type Category string

const (
	CategoryFinancial  Category = "financial"
	CategorySocial     Category = "social"
	CategoryGovernance Category = "governance"
)

// EventInfo describes one catalog entry.
type EventInfo struct {
	Type     EventType `json:"type"`
	Category Category  `json:"category"`
}

// Catalog is the immutable reference table of roles and event types.
type Catalog struct {
	roles      []Role
	events     []EventInfo
	categories map[EventType]Category
}

var defaultCatalog = newCatalog()

func newCatalog() *Catalog {
	events := []EventInfo{
		{Type: EventPayment, Category: CategoryFinancial},
		{Type: EventInvoice, Category: CategoryFinancial},
		{Type: EventTreasuryAccess, Category: CategoryFinancial},
		{Type: EventLightningZap, Category: CategoryFinancial},
		{Type: EventSpendingLimitChange, Category: CategoryFinancial},
		{Type: EventSocialPost, Category: CategorySocial},
		{Type: EventDirectMessage, Category: CategorySocial},
		{Type: EventProfileUpdate, Category: CategorySocial},
		{Type: EventMemberInvite, Category: CategoryGovernance},
		{Type: EventMemberRemove, Category: CategoryGovernance},
		{Type: EventRoleChange, Category: CategoryGovernance},
		{Type: EventPolicyUpdate, Category: CategoryGovernance},
		{Type: EventKeyRotation, Category: CategoryGovernance},
	}
	categories := make(map[EventType]Category, len(events))
	for _, e := range events {
		categories[e.Type] = e.Category
	}
	return &Catalog{
		roles:      []Role{RoleGuardian, RoleSteward, RoleAdult, RoleOffspring, RolePrivate},
		events:     events,
		categories: categories,
	}
}

// DefaultCatalog returns the process wide catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Roles lists every role, highest first, with private last.
func (c *Catalog) Roles() []Role {
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// EventTypes lists every event type in display order.
func (c *Catalog) EventTypes() []EventInfo {
	out := make([]EventInfo, len(c.events))
	copy(out, c.events)
	return out
}

// Category returns the display category of an event type.
func (c *Catalog) Category(e EventType) (Category, bool) {
	cat, ok := c.categories[e]
	return cat, ok
}

// ValidEventType reports whether e belongs to the closed set.
func (c *Catalog) ValidEventType(e EventType) bool {
	_, ok := c.categories[e]
	return ok
}

// ParseRole normalises and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RolePrivate, RoleOffspring, RoleAdult, RoleSteward, RoleGuardian:
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// ParseEventType normalises and validates an event type.
func ParseEventType(raw string) (EventType, error) {
	e := EventType(strings.ToLower(strings.TrimSpace(raw)))
	if !defaultCatalog.ValidEventType(e) {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, raw)
	}
	return e, nil
}

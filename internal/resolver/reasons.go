package resolver

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hearthguard/hearthguard/internal/rbac"
)

// Style selects how a reason is rendered.
type Style int

const (
	// StyleCompact is a short label suitable for badges.
	StyleCompact Style = iota
	// StyleDetailed is a full sentence naming the role and event.
	StyleDetailed
)

// ParseStyle maps "detailed" to StyleDetailed and anything else to StyleCompact.
func ParseStyle(raw string) Style {
	if strings.EqualFold(strings.TrimSpace(raw), "detailed") {
		return StyleDetailed
	}
	return StyleCompact
}

// Subject names what a decision was about, for detailed rendering.
type Subject struct {
	Role      rbac.Role
	EventType rbac.EventType
}

var compact = map[ReasonCode]string{
	ReasonRoleNotAllowed:        "Not permitted for role",
	ReasonRequiresApproval:      "Approval required",
	ReasonDailyLimitExceeded:    "Daily limit reached",
	ReasonTimeWindowInactive:    "Outside allowed hours",
	ReasonMemberOverrideRevoked: "Blocked for this member",
	ReasonCooldownActive:        "Cooling down",
	ReasonFederationPolicy:      "Blocked by federation policy",
	ReasonUnknown:               "Denied",
	ReasonResolutionError:       "Policy unavailable",
}

var detailed = map[ReasonCode]string{
	ReasonRoleNotAllowed:        "Members with the %s role cannot sign %s events.",
	ReasonRequiresApproval:      "%s members need a steward or guardian to approve %s events.",
	ReasonDailyLimitExceeded:    "The daily limit for %[2]s events has been reached for this %[1]s member. It resets at midnight UTC.",
	ReasonTimeWindowInactive:    "%[2]s events are outside the allowed time window for this %[1]s member.",
	ReasonMemberOverrideRevoked: "A steward or guardian has blocked %[2]s events for this %[1]s member.",
	ReasonCooldownActive:        "A cooldown is in effect for %[2]s events for this %[1]s member.",
	ReasonFederationPolicy:      "Federation policy blocks %[2]s events for %[1]s members.",
	ReasonUnknown:               "The %[2]s event was denied for this %[1]s member.",
	ReasonResolutionError:       "The policy engine could not evaluate %[2]s for this %[1]s member, so the action is denied.",
}

// titled builds a new Caser per call; Casers keep state and are not safe to share.
func titled(s string) string {
	return cases.Title(language.English).String(s)
}

// Describe renders a reason code. The empty code renders as allowed.
func Describe(code ReasonCode, style Style, subject Subject) string {
	if code == "" {
		if style == StyleDetailed {
			return fmt.Sprintf("%s events are allowed.", eventLabel(subject.EventType))
		}
		return "Allowed"
	}
	if style == StyleCompact {
		if msg, ok := compact[code]; ok {
			return msg
		}
		return compact[ReasonUnknown]
	}
	tmpl, ok := detailed[code]
	if !ok {
		tmpl = detailed[ReasonUnknown]
	}
	return fmt.Sprintf(tmpl, roleLabel(subject.Role), eventLabel(subject.EventType))
}

func roleLabel(r rbac.Role) string {
	if r == "" {
		return "unknown"
	}
	return titled(string(r))
}

func eventLabel(e rbac.EventType) string {
	if e == "" {
		return "This"
	}
	label := titled(strings.ReplaceAll(string(e), "_", " "))
	if cat, ok := rbac.DefaultCatalog().Category(e); ok {
		label += " (" + titled(string(cat)) + ")"
	}
	return label
}

// Package resolver composes the policy stores into one decision per request.
package resolver

import "errors"

// ReasonCode explains a decision that did not plainly allow the action.
type ReasonCode string

const (
	ReasonRoleNotAllowed        ReasonCode = "role_not_allowed"
	ReasonRequiresApproval      ReasonCode = "requires_approval"
	ReasonDailyLimitExceeded    ReasonCode = "daily_limit_exceeded"
	ReasonTimeWindowInactive    ReasonCode = "time_window_inactive"
	ReasonMemberOverrideRevoked ReasonCode = "member_override_revoked"
	ReasonCooldownActive        ReasonCode = "cooldown_active"
	ReasonFederationPolicy      ReasonCode = "federation_policy"
	ReasonUnknown               ReasonCode = "unknown"
	// ReasonResolutionError marks a system failure. It is always a denial.
	ReasonResolutionError ReasonCode = "resolution_error"
)

// ErrResolution wraps every failure that prevented a decision.
var ErrResolution = errors.New("resolver: resolution failed")

// Decision is the resolver output.
type Decision struct {
	Allowed          bool       `json:"allowed"`
	RequiresApproval bool       `json:"requiresApproval"`
	ReasonCode       ReasonCode `json:"reasonCode,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(code ReasonCode) Decision {
	return Decision{ReasonCode: code}
}

// FailClosed is the decision returned alongside a resolution error.
func FailClosed() Decision {
	return deny(ReasonResolutionError)
}

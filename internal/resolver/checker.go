package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
)

// MemberLookup resolves the role a member holds in a federation.
type MemberLookup interface {
	RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error)
}

// Auditor persists one audit entry.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// DecisionObserver receives one sample per resolution.
type DecisionObserver interface {
	ObserveDecision(outcome, reason string, elapsed time.Duration)
}

// CheckInput identifies who asks and on whose behalf.
type CheckInput struct {
	FederationID string
	RequestedBy  string
	MemberID     string
	EventType    string
}

// Checker wraps the Resolver with member lookup, audit and metrics. Every
// failure is converted into a fail-closed decision.
type Checker struct {
	members  MemberLookup
	resolver *Resolver
	auditor  Auditor
	observer DecisionObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewChecker builds a Checker. observer may be nil.
func NewChecker(members MemberLookup, resolver *Resolver, auditor Auditor, observer DecisionObserver, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		members:  members,
		resolver: resolver,
		auditor:  auditor,
		observer: observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Check resolves one action for in.MemberID. The returned error is non-nil
// exactly when the decision carries ReasonResolutionError.
func (c *Checker) Check(ctx context.Context, in CheckInput) (Decision, error) {
	now := c.now()
	started := time.Now()

	decision, role, err := c.resolve(ctx, in, now)
	if err == nil {
		if auditErr := c.record(ctx, in, role, decision, now); auditErr != nil && decision.Allowed {
			decision, err = FailClosed(), fmt.Errorf("%w: audit: %w", ErrResolution, auditErr)
		} else if auditErr != nil {
			c.logger.Warn("audit permission check failed", slog.String("federation_id", in.FederationID), slog.Any("error", auditErr))
		}
	} else {
		c.logger.Error("permission resolution failed",
			slog.String("federation_id", in.FederationID),
			slog.String("member_id", in.MemberID),
			slog.String("event_type", in.EventType),
			slog.Any("error", err))
		if auditErr := c.record(ctx, in, role, decision, now); auditErr != nil {
			c.logger.Warn("audit permission check failed", slog.String("federation_id", in.FederationID), slog.Any("error", auditErr))
		}
	}

	if c.observer != nil {
		c.observer.ObserveDecision(outcome(decision), string(decision.ReasonCode), time.Since(started))
	}
	return decision, err
}

func (c *Checker) resolve(ctx context.Context, in CheckInput, now time.Time) (Decision, rbac.Role, error) {
	event, err := rbac.ParseEventType(in.EventType)
	if err != nil {
		return FailClosed(), "", fmt.Errorf("%w: %w", ErrResolution, err)
	}
	role, err := c.members.RoleOf(ctx, in.FederationID, in.MemberID)
	if err != nil {
		return FailClosed(), "", fmt.Errorf("%w: member %q: %w", ErrResolution, in.MemberID, err)
	}
	actor := rbac.Actor{FederationID: in.FederationID, MemberID: in.MemberID, Role: role}
	decision, err := c.resolver.Resolve(ctx, actor, event, now)
	if err != nil && !errors.Is(err, ErrResolution) {
		err = fmt.Errorf("%w: %w", ErrResolution, err)
	}
	return decision, role, err
}

func (c *Checker) record(ctx context.Context, in CheckInput, role rbac.Role, d Decision, now time.Time) error {
	if c.auditor == nil {
		return nil
	}
	meta := map[string]any{
		"eventType":        in.EventType,
		"allowed":          d.Allowed,
		"requiresApproval": d.RequiresApproval,
		"reasonCode":       string(d.ReasonCode),
		"requestedBy":      in.RequestedBy,
	}
	if role != "" {
		meta["role"] = string(role)
	}
	actorID := in.RequestedBy
	if actorID == "" {
		actorID = in.MemberID
	}
	return c.auditor.Record(ctx, audit.Entry{
		FederationID: in.FederationID,
		ActorID:      actorID,
		Action:       audit.ActionPermissionCheck,
		Entity:       "member",
		EntityID:     in.MemberID,
		Meta:         meta,
		At:           now,
	})
}

func outcome(d Decision) string {
	switch {
	case d.Allowed:
		return "allow"
	case d.RequiresApproval:
		return "approval"
	case d.ReasonCode == ReasonResolutionError:
		return "error"
	default:
		return "deny"
	}
}

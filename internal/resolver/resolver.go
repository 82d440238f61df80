package resolver

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hearthguard/hearthguard/internal/overrides"
	"github.com/hearthguard/hearthguard/internal/permissions"
	"github.com/hearthguard/hearthguard/internal/ratelimit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/windows"
)

// RuleStore reads base rules.
type RuleStore interface {
	Get(ctx context.Context, federationID string, role rbac.Role, event rbac.EventType) (permissions.RolePermission, error)
}

// OverrideStore reads the authoritative member override.
type OverrideStore interface {
	ResolveActive(ctx context.Context, federationID, memberID string, event rbac.EventType, now time.Time) (overrides.Override, bool, error)
}

// WindowStore reads role and member scoped windows.
type WindowStore interface {
	ForScopes(ctx context.Context, federationID string, role rbac.Role, memberID string, event rbac.EventType) ([]windows.Window, error)
}

// RateLimiter counts attempts against a daily cap.
type RateLimiter interface {
	IncrementAndCheck(ctx context.Context, federationID, memberID string, event rbac.EventType, day time.Time, maxCount *int) (ratelimit.Result, error)
}

// Resolver is a pure orchestrator over the stores. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	rules     RuleStore
	overrides OverrideStore
	windows   WindowStore
	limiter   RateLimiter
}

// New builds a Resolver.
func New(rules RuleStore, overrides OverrideStore, windows WindowStore, limiter RateLimiter) *Resolver {
	return &Resolver{rules: rules, overrides: overrides, windows: windows, limiter: limiter}
}

// Resolve decides whether actor may perform event at now. Precedence is
// member override, cooldown, schedule, daily limit, approval flag. The quota
// is only charged once every earlier check passed.
func (r *Resolver) Resolve(ctx context.Context, actor rbac.Actor, event rbac.EventType, now time.Time) (Decision, error) {
	if !rbac.DefaultCatalog().ValidEventType(event) {
		return FailClosed(), fmt.Errorf("%w: %w: %q", ErrResolution, rbac.ErrUnknownEventType, event)
	}
	if actor.Role == rbac.RolePrivate {
		return allow(), nil
	}
	if !actor.Role.Hierarchical() {
		return FailClosed(), fmt.Errorf("%w: %w: %q", ErrResolution, rbac.ErrUnknownRole, actor.Role)
	}

	var (
		base     permissions.RolePermission
		override overrides.Override
		hasOver  bool
		scoped   []windows.Window
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		base, err = r.rules.Get(gctx, actor.FederationID, actor.Role, event)
		return err
	})
	g.Go(func() error {
		var err error
		override, hasOver, err = r.overrides.ResolveActive(gctx, actor.FederationID, actor.MemberID, event, now)
		return err
	})
	g.Go(func() error {
		var err error
		scoped, err = r.windows.ForScopes(gctx, actor.FederationID, actor.Role, actor.MemberID, event)
		return err
	})
	if err := g.Wait(); err != nil {
		return FailClosed(), fmt.Errorf("%w: %w", ErrResolution, err)
	}

	if hasOver && !override.Allowed {
		return deny(ReasonMemberOverrideRevoked), nil
	}
	canAttempt := base.CanSign
	if hasOver {
		canAttempt = override.Allowed
	}
	if !canAttempt {
		return deny(ReasonRoleNotAllowed), nil
	}

	verdict, err := windows.Aggregate(scoped, now)
	if err != nil {
		return FailClosed(), fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if verdict.CooldownBlocking {
		return deny(ReasonCooldownActive), nil
	}
	if !verdict.ScheduleGatePass {
		return deny(ReasonTimeWindowInactive), nil
	}

	// A rule with canSign=false contributes nothing beyond the denial an
	// override may lift.
	if base.CanSign && base.MaxDailyCount != nil {
		res, err := r.limiter.IncrementAndCheck(ctx, actor.FederationID, actor.MemberID, event, now, base.MaxDailyCount)
		if err != nil {
			return FailClosed(), fmt.Errorf("%w: %w", ErrResolution, err)
		}
		if !res.WithinLimit {
			return deny(ReasonDailyLimitExceeded), nil
		}
	}

	if base.CanSign && base.RequiresApproval {
		return Decision{RequiresApproval: true, ReasonCode: ReasonRequiresApproval}, nil
	}
	return allow(), nil
}

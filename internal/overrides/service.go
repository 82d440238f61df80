package overrides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// RepositoryPort defines data access methods for overrides.
type RepositoryPort interface {
	ActiveFor(ctx context.Context, federationID, memberID string, event rbac.EventType, now time.Time) (Override, error)
	Get(ctx context.Context, federationID string, id uuid.UUID) (Override, error)
	Insert(ctx context.Context, o Override) error
	Expire(ctx context.Context, federationID string, id uuid.UUID, now time.Time) (bool, error)
	List(ctx context.Context, federationID string, includeInactive bool, now time.Time) ([]Override, error)
}

// MemberLookup confirms that a member belongs to a federation.
type MemberLookup interface {
	RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error)
}

// Auditor records mutations.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Bumper invalidates cached snapshots of a federation.
type Bumper interface {
	Bump(ctx context.Context, namespace string) error
}

// Service exposes the member override store.
type Service struct {
	repo    RepositoryPort
	members MemberLookup
	audit   Auditor
	bumper  Bumper
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, members MemberLookup, auditor Auditor, bumper Bumper) *Service {
	return &Service{repo: repo, members: members, audit: auditor, bumper: bumper, now: time.Now}
}

// ResolveActive returns the authoritative override at now. The boolean is
// false when none is in force.
func (s *Service) ResolveActive(ctx context.Context, federationID, memberID string, event rbac.EventType, now time.Time) (Override, bool, error) {
	o, err := s.repo.ActiveFor(ctx, federationID, memberID, event, now)
	if errors.Is(err, shared.ErrNotFound) {
		return Override{}, false, nil
	}
	if err != nil {
		return Override{}, false, fmt.Errorf("overrides: resolve active: %w", err)
	}
	return o, true, nil
}

// Create stores a new override authored by actor.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (Override, error) {
	if !rbac.CanManagePolicy(actor.Role) {
		return Override{}, fmt.Errorf("%w: %s may not create overrides", shared.ErrForbidden, actor.Role)
	}
	event, err := rbac.ParseEventType(in.EventType)
	if err != nil {
		return Override{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Override{}, fmt.Errorf("%w: reason required", shared.ErrValidation)
	}
	now := s.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return Override{}, fmt.Errorf("%w: expiresAt must be in the future", shared.ErrValidation)
	}
	memberID := strings.TrimSpace(in.MemberID)
	if err := s.authorizeTarget(ctx, actor, memberID); err != nil {
		return Override{}, err
	}

	o := Override{
		ID:           uuid.New(),
		FederationID: actor.FederationID,
		MemberID:     memberID,
		EventType:    event,
		Allowed:      in.Allowed,
		Reason:       reason,
		CreatedBy:    actor.MemberID,
		CreatedAt:    now,
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		o.ExpiresAt = &exp
	}
	if err := s.repo.Insert(ctx, o); err != nil {
		return Override{}, fmt.Errorf("overrides: insert: %w", err)
	}
	meta := map[string]any{"member": o.MemberID, "eventType": string(o.EventType), "allowed": o.Allowed, "reason": o.Reason}
	if err := s.afterMutation(ctx, actor, audit.ActionOverrideCreate, o.ID, meta); err != nil {
		return Override{}, err
	}
	return o, nil
}

// Revoke expires an override. Revoking an already inactive override is a no-op
// that still returns the stored row.
func (s *Service) Revoke(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Override, error) {
	if !rbac.CanManagePolicy(actor.Role) {
		return Override{}, fmt.Errorf("%w: %s may not revoke overrides", shared.ErrForbidden, actor.Role)
	}
	current, err := s.repo.Get(ctx, actor.FederationID, id)
	if err != nil {
		return Override{}, err
	}
	if err := s.authorizeTarget(ctx, actor, current.MemberID); err != nil {
		return Override{}, err
	}
	now := s.now().UTC()
	changed, err := s.repo.Expire(ctx, actor.FederationID, id, now)
	if err != nil {
		return Override{}, fmt.Errorf("overrides: expire: %w", err)
	}
	o, err := s.repo.Get(ctx, actor.FederationID, id)
	if err != nil {
		return Override{}, err
	}
	if !changed {
		return o, nil
	}
	if err := s.afterMutation(ctx, actor, audit.ActionOverrideRevoke, id, map[string]any{"member": o.MemberID, "eventType": string(o.EventType)}); err != nil {
		return Override{}, err
	}
	return o, nil
}

// authorizeTarget resolves the target member's role and rejects actors that
// do not outrank it. Stewards therefore cannot touch guardians, peers or
// their own overrides.
func (s *Service) authorizeTarget(ctx context.Context, actor rbac.Actor, memberID string) error {
	if s.members == nil {
		return errors.New("overrides: member lookup not configured")
	}
	role, err := s.members.RoleOf(ctx, actor.FederationID, memberID)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: member %s is not in federation", shared.ErrValidation, memberID)
	}
	if err != nil {
		return err
	}
	if !rbac.CanActOn(actor.Role, role) {
		return fmt.Errorf("%w: %s may not set overrides for a %s", shared.ErrForbidden, actor.Role, role)
	}
	return nil
}

// List returns overrides of a federation.
func (s *Service) List(ctx context.Context, federationID string, includeInactive bool) ([]Override, error) {
	return s.repo.List(ctx, federationID, includeInactive, s.now().UTC())
}

func (s *Service) afterMutation(ctx context.Context, actor rbac.Actor, action string, id uuid.UUID, meta map[string]any) error {
	if s.audit != nil {
		err := s.audit.Record(ctx, audit.Entry{
			FederationID: actor.FederationID,
			ActorID:      actor.MemberID,
			Action:       action,
			Entity:       "member_override",
			EntityID:     id.String(),
			Meta:         meta,
		})
		if err != nil {
			return err
		}
	}
	if s.bumper != nil {
		if err := s.bumper.Bump(ctx, actor.FederationID); err != nil {
			return fmt.Errorf("overrides: bump snapshot: %w", err)
		}
	}
	return nil
}

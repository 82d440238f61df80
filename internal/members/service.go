package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// RepositoryPort defines data access methods for members.
type RepositoryPort interface {
	Get(ctx context.Context, federationID, memberID string) (Member, error)
	List(ctx context.Context, federationID string) ([]Member, error)
	Upsert(ctx context.Context, m Member) (Member, error)
	UpdateRole(ctx context.Context, federationID, memberID string, expected, role rbac.Role) (Member, error)
}

// Auditor records mutations.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service handles membership business logic.
type Service struct {
	repo  RepositoryPort
	audit Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditor Auditor) *Service {
	return &Service{repo: repo, audit: auditor}
}

// Get returns one member.
func (s *Service) Get(ctx context.Context, federationID, memberID string) (Member, error) {
	return s.repo.Get(ctx, federationID, memberID)
}

// List returns all members of a federation.
func (s *Service) List(ctx context.Context, federationID string) ([]Member, error) {
	return s.repo.List(ctx, federationID)
}

// RoleOf implements rbac.RoleResolver.
func (s *Service) RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error) {
	m, err := s.repo.Get(ctx, federationID, memberID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Upsert adds a member or updates its display name. Role changes of existing
// members go through the same eligibility rules as ChangeRole.
func (s *Service) Upsert(ctx context.Context, actor rbac.Actor, memberID string, in UpsertInput) (Member, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return Member{}, fmt.Errorf("%w: member id required", shared.ErrValidation)
	}
	role, err := rbac.ParseRole(in.Role)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}

	existing, err := s.repo.Get(ctx, actor.FederationID, memberID)
	switch {
	case err == nil:
		if existing.Role != role {
			if check := rbac.CanChangeRole(actor.Role, existing.Role, role); !check.Valid {
				return Member{}, fmt.Errorf("%w: %s", shared.ErrForbidden, check.Reason)
			}
		} else if memberID != actor.MemberID && !outranks(actor.Role, existing.Role) {
			return Member{}, fmt.Errorf("%w: only stewards and guardians edit junior members", shared.ErrForbidden)
		}
	case errors.Is(err, shared.ErrNotFound):
		if err := canAdmit(actor.Role, role); err != nil {
			return Member{}, err
		}
	default:
		return Member{}, err
	}

	saved, err := s.repo.Upsert(ctx, Member{
		FederationID: actor.FederationID,
		MemberID:     memberID,
		Role:         role,
		DisplayName:  strings.TrimSpace(in.DisplayName),
	})
	if err != nil {
		return Member{}, err
	}
	if err := s.record(ctx, actor, audit.ActionMemberUpsert, memberID, map[string]any{"role": string(role)}); err != nil {
		return Member{}, err
	}
	return saved, nil
}

// ChangeRole moves a member to a new role, guarded by rbac.CanChangeRole.
func (s *Service) ChangeRole(ctx context.Context, actor rbac.Actor, targetID string, newRole string) (Member, error) {
	desired, err := rbac.ParseRole(newRole)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	target, err := s.repo.Get(ctx, actor.FederationID, targetID)
	if err != nil {
		return Member{}, err
	}
	check := rbac.CanChangeRole(actor.Role, target.Role, desired)
	if !check.Valid {
		return Member{}, fmt.Errorf("%w: %s", shared.ErrForbidden, check.Reason)
	}
	updated, err := s.repo.UpdateRole(ctx, actor.FederationID, targetID, target.Role, desired)
	if err != nil {
		return Member{}, err
	}
	meta := map[string]any{"from": string(target.Role), "to": string(desired)}
	if err := s.record(ctx, actor, audit.ActionMemberRoleChange, targetID, meta); err != nil {
		return Member{}, err
	}
	return updated, nil
}

// canAdmit checks whether actor may add a new member holding role. Private
// members are admitted by guardians only.
func canAdmit(actorRole, role rbac.Role) error {
	if role == rbac.RolePrivate {
		if actorRole != rbac.RoleGuardian {
			return fmt.Errorf("%w: only guardians admit private members", shared.ErrForbidden)
		}
		return nil
	}
	if !rbac.CanManagePolicy(actorRole) {
		return fmt.Errorf("%w: only stewards and guardians admit members", shared.ErrForbidden)
	}
	want, _ := rbac.Level(role)
	have, _ := rbac.Level(actorRole)
	if want >= have {
		return fmt.Errorf("%w: cannot admit a member at or above your own role", shared.ErrForbidden)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor rbac.Actor, action, memberID string, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, audit.Entry{
		FederationID: actor.FederationID,
		ActorID:      actor.MemberID,
		Action:       action,
		Entity:       "member",
		EntityID:     memberID,
		Meta:         meta,
	})
}

func outranks(actorRole, target rbac.Role) bool {
	if !rbac.CanManagePolicy(actorRole) {
		return false
	}
	have, _ := rbac.Level(actorRole)
	want, ok := rbac.Level(target)
	return !ok || want < have
}

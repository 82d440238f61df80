package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// RepositoryPort defines data access methods for role rules.
type RepositoryPort interface {
	Get(ctx context.Context, federationID string, role rbac.Role, event rbac.EventType) (RolePermission, error)
	List(ctx context.Context, federationID string) ([]RolePermission, error)
	ReplaceRoles(ctx context.Context, federationID, configuredBy string, sets map[rbac.Role][]RolePermission) error
}

// Auditor records mutations.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Bumper invalidates cached snapshots of a federation.
type Bumper interface {
	Bump(ctx context.Context, namespace string) error
}

// Service exposes the role permission store.
type Service struct {
	repo   RepositoryPort
	audit  Auditor
	bumper Bumper
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditor Auditor, bumper Bumper) *Service {
	return &Service{repo: repo, audit: auditor, bumper: bumper}
}

// Get returns the base rule, defaulting to canSign=false when absent.
func (s *Service) Get(ctx context.Context, federationID string, role rbac.Role, event rbac.EventType) (RolePermission, error) {
	p, err := s.repo.Get(ctx, federationID, role, event)
	if errors.Is(err, shared.ErrNotFound) {
		return RolePermission{FederationID: federationID, Role: role, EventType: event}, nil
	}
	if err != nil {
		return RolePermission{}, fmt.Errorf("permissions: get %s/%s: %w", role, event, err)
	}
	return p, nil
}

// List returns every rule of the federation.
func (s *Service) List(ctx context.Context, federationID string) ([]RolePermission, error) {
	return s.repo.List(ctx, federationID)
}

// SetBatch replaces the full rule set of role atomically.
func (s *Service) SetBatch(ctx context.Context, actor rbac.Actor, role string, rules []Rule) ([]RolePermission, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	target, err := parseTargetRole(role)
	if err != nil {
		return nil, err
	}
	if err := requireOutranks(actor, target); err != nil {
		return nil, err
	}
	set, err := normalizeBatch(actor.FederationID, target, rules)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ctx, actor, map[rbac.Role][]RolePermission{target: set}); err != nil {
		return nil, err
	}
	return set, nil
}

// ReplaceRoles commits several role rule sets as one transaction. Draft
// commits go through here.
func (s *Service) ReplaceRoles(ctx context.Context, actor rbac.Actor, sets map[rbac.Role][]RolePermission) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	if len(sets) == 0 {
		return fmt.Errorf("%w: no roles to replace", shared.ErrValidation)
	}
	for role, set := range sets {
		if role == rbac.RolePrivate || !role.Hierarchical() {
			return fmt.Errorf("%w: invalid target role %q", shared.ErrValidation, role)
		}
		if err := requireOutranks(actor, role); err != nil {
			return err
		}
		seen := make(map[rbac.EventType]struct{}, len(set))
		for i := range set {
			if set[i].Role != role || !rbac.DefaultCatalog().ValidEventType(set[i].EventType) {
				return fmt.Errorf("%w: invalid rule %s/%s", shared.ErrValidation, set[i].Role, set[i].EventType)
			}
			if _, dup := seen[set[i].EventType]; dup {
				return fmt.Errorf("%w: duplicate event type %s", shared.ErrValidation, set[i].EventType)
			}
			seen[set[i].EventType] = struct{}{}
			set[i].FederationID = actor.FederationID
		}
	}
	return s.replace(ctx, actor, sets)
}

func (s *Service) replace(ctx context.Context, actor rbac.Actor, sets map[rbac.Role][]RolePermission) error {
	if err := s.repo.ReplaceRoles(ctx, actor.FederationID, actor.MemberID, sets); err != nil {
		return fmt.Errorf("permissions: replace: %w", err)
	}
	for role, set := range sets {
		if s.audit == nil {
			break
		}
		err := s.audit.Record(ctx, audit.Entry{
			FederationID: actor.FederationID,
			ActorID:      actor.MemberID,
			Action:       audit.ActionRolePermissionsSet,
			Entity:       "role",
			EntityID:     string(role),
			Meta:         map[string]any{"rules": len(set)},
		})
		if err != nil {
			return err
		}
	}
	if s.bumper != nil {
		if err := s.bumper.Bump(ctx, actor.FederationID); err != nil {
			return fmt.Errorf("permissions: bump snapshot: %w", err)
		}
	}
	return nil
}

func requireManager(actor rbac.Actor) error {
	if !rbac.CanManagePolicy(actor.Role) {
		return fmt.Errorf("%w: %s may not configure permissions", shared.ErrForbidden, actor.Role)
	}
	return nil
}

func requireOutranks(actor rbac.Actor, target rbac.Role) error {
	if !rbac.CanActOn(actor.Role, target) {
		return fmt.Errorf("%w: %s may not configure the %s role", shared.ErrForbidden, actor.Role, target)
	}
	return nil
}

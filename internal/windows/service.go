package windows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// RepositoryPort defines data access methods for windows.
type RepositoryPort interface {
	ForScopes(ctx context.Context, federationID string, role rbac.Role, memberID string, event rbac.EventType) ([]Window, error)
	List(ctx context.Context, federationID string) ([]Window, error)
	Get(ctx context.Context, federationID string, id uuid.UUID) (Window, error)
	Insert(ctx context.Context, w Window) error
	Delete(ctx context.Context, federationID string, id uuid.UUID) (Window, error)
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

// Service exposes the time window store.
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

// ForScopes reads both role scoped and member scoped windows for event.
func (s *Service) ForScopes(ctx context.Context, federationID string, role rbac.Role, memberID string, event rbac.EventType) ([]Window, error) {
	ws, err := s.repo.ForScopes(ctx, federationID, role, memberID, event)
	if err != nil {
		return nil, fmt.Errorf("windows: for scopes: %w", err)
	}
	return ws, nil
}

// List returns every window of a federation.
func (s *Service) List(ctx context.Context, federationID string) ([]Window, error) {
	return s.repo.List(ctx, federationID)
}

// Create validates and stores a window authored by actor.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (Window, error) {
	if !rbac.CanManagePolicy(actor.Role) {
		return Window{}, fmt.Errorf("%w: %s may not manage windows", shared.ErrForbidden, actor.Role)
	}
	now := s.now().UTC()
	w, err := s.build(ctx, actor, in, now)
	if err != nil {
		return Window{}, err
	}
	if err := s.repo.Insert(ctx, w); err != nil {
		return Window{}, fmt.Errorf("windows: insert: %w", err)
	}
	meta := map[string]any{"scope": string(w.ScopeType) + ":" + w.ScopeID, "eventType": string(w.EventType), "type": string(w.WindowType)}
	if err := s.afterMutation(ctx, actor, audit.ActionWindowCreate, w.ID, meta); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Delete removes a window.
func (s *Service) Delete(ctx context.Context, actor rbac.Actor, id uuid.UUID) error {
	if !rbac.CanManagePolicy(actor.Role) {
		return fmt.Errorf("%w: %s may not manage windows", shared.ErrForbidden, actor.Role)
	}
	current, err := s.repo.Get(ctx, actor.FederationID, id)
	if err != nil {
		return err
	}
	target, err := s.scopeRole(ctx, actor.FederationID, current.ScopeType, current.ScopeID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	// A departed member scope resolves to no role; only guardians may clear it.
	if err := requireOutranks(actor, target); err != nil {
		return err
	}
	w, err := s.repo.Delete(ctx, actor.FederationID, id)
	if err != nil {
		return err
	}
	meta := map[string]any{"scope": string(w.ScopeType) + ":" + w.ScopeID, "eventType": string(w.EventType), "type": string(w.WindowType)}
	return s.afterMutation(ctx, actor, audit.ActionWindowDelete, id, meta)
}

func (s *Service) build(ctx context.Context, actor rbac.Actor, in CreateInput, now time.Time) (Window, error) {
	event, err := rbac.ParseEventType(in.EventType)
	if err != nil {
		return Window{}, invalid("%v", err)
	}
	w := Window{
		ID:           uuid.New(),
		FederationID: actor.FederationID,
		ScopeType:    ScopeType(in.ScopeType),
		ScopeID:      strings.TrimSpace(in.ScopeID),
		EventType:    event,
		WindowType:   Type(in.WindowType),
		CreatedBy:    actor.MemberID,
		CreatedAt:    now,
	}

	switch w.ScopeType {
	case ScopeRole:
		role, err := rbac.ParseRole(w.ScopeID)
		if err != nil || role == rbac.RolePrivate {
			return Window{}, invalid("scopeId must be a hierarchical role")
		}
		w.ScopeID = string(role)
	case ScopeMember:
	default:
		return Window{}, invalid("unknown scopeType %q", in.ScopeType)
	}
	target, err := s.scopeRole(ctx, actor.FederationID, w.ScopeType, w.ScopeID)
	if errors.Is(err, shared.ErrNotFound) {
		return Window{}, invalid("member %s is not in federation", w.ScopeID)
	}
	if err != nil {
		return Window{}, err
	}
	if err := requireOutranks(actor, target); err != nil {
		return Window{}, err
	}

	switch w.WindowType {
	case TypeScheduled:
		if _, err := parseClock(in.StartTime); err != nil {
			return Window{}, invalid("startTime: %v", err)
		}
		if _, err := parseClock(in.EndTime); err != nil {
			return Window{}, invalid("endTime: %v", err)
		}
		days, err := normalizeDays(in.DaysOfWeek)
		if err != nil {
			return Window{}, err
		}
		tz := strings.TrimSpace(in.Timezone)
		if tz == "" {
			tz = "UTC"
		}
		if _, err := loadLocation(tz); err != nil {
			return Window{}, invalid("timezone %q: %v", tz, err)
		}
		w.StartTime, w.EndTime, w.DaysOfWeek, w.Timezone = in.StartTime, in.EndTime, days, tz
	case TypeTemporary:
		if in.StartsAt == nil && in.ExpiresAt == nil {
			return Window{}, invalid("temporary window needs startsAt or expiresAt")
		}
		if in.StartsAt != nil && in.ExpiresAt != nil && in.ExpiresAt.Before(*in.StartsAt) {
			return Window{}, invalid("expiresAt precedes startsAt")
		}
		w.StartsAt, w.ExpiresAt = utcPtr(in.StartsAt), utcPtr(in.ExpiresAt)
	case TypeCooldown:
		if in.ExpiresAt == nil {
			return Window{}, invalid("cooldown window needs expiresAt")
		}
		if !in.ExpiresAt.After(now) {
			return Window{}, invalid("cooldown expiresAt must be in the future")
		}
		w.ExpiresAt = utcPtr(in.ExpiresAt)
	default:
		return Window{}, invalid("unknown windowType %q", in.WindowType)
	}
	return w, nil
}

// scopeRole returns the role a window scope governs: the role itself, or the
// member's current role.
func (s *Service) scopeRole(ctx context.Context, federationID string, scope ScopeType, scopeID string) (rbac.Role, error) {
	if scope == ScopeRole {
		return rbac.ParseRole(scopeID)
	}
	if s.members == nil {
		return "", errors.New("windows: member lookup not configured")
	}
	return s.members.RoleOf(ctx, federationID, scopeID)
}

func requireOutranks(actor rbac.Actor, target rbac.Role) error {
	if !rbac.CanActOn(actor.Role, target) {
		return fmt.Errorf("%w: %s may not manage windows for %s scopes", shared.ErrForbidden, actor.Role, target)
	}
	return nil
}

func normalizeDays(days []int) ([]int, error) {
	if len(days) == 0 {
		return nil, invalid("daysOfWeek required")
	}
	seen := map[int]struct{}{}
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, invalid("daysOfWeek entries must be 0..6")
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

func (s *Service) afterMutation(ctx context.Context, actor rbac.Actor, action string, id uuid.UUID, meta map[string]any) error {
	if s.audit != nil {
		err := s.audit.Record(ctx, audit.Entry{
			FederationID: actor.FederationID,
			ActorID:      actor.MemberID,
			Action:       action,
			Entity:       "time_window",
			EntityID:     id.String(),
			Meta:         meta,
		})
		if err != nil {
			return err
		}
	}
	if s.bumper != nil {
		if err := s.bumper.Bump(ctx, actor.FederationID); err != nil {
			return fmt.Errorf("windows: bump snapshot: %w", err)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrValidation, fmt.Sprintf(format, args...))
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

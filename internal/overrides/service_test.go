package overrides

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

type memoryRepo struct {
	mu   sync.Mutex
	rows []Override
}

func (m *memoryRepo) ActiveFor(ctx context.Context, federationID, memberID string, event rbac.EventType, now time.Time) (Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Override
	for i := range m.rows {
		o := m.rows[i]
		if o.FederationID != federationID || o.MemberID != memberID || o.EventType != event || !o.ActiveAt(now) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			best = &m.rows[i]
		}
	}
	if best == nil {
		return Override{}, shared.ErrNotFound
	}
	return *best, nil
}

func (m *memoryRepo) Get(ctx context.Context, federationID string, id uuid.UUID) (Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.rows {
		if o.ID == id && o.FederationID == federationID {
			return o, nil
		}
	}
	return Override{}, shared.ErrNotFound
}

func (m *memoryRepo) Insert(ctx context.Context, o Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, o)
	return nil
}

func (m *memoryRepo) Expire(ctx context.Context, federationID string, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].FederationID == federationID && m.rows[i].ActiveAt(now) {
			at := now
			m.rows[i].ExpiresAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) List(ctx context.Context, federationID string, includeInactive bool, now time.Time) ([]Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Override
	for _, o := range m.rows {
		if o.FederationID == federationID && (includeInactive || o.ActiveAt(now)) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type staticMembers map[string]rbac.Role

func (s staticMembers) RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error) {
	if role, ok := s[memberID]; ok {
		return role, nil
	}
	return "", shared.ErrNotFound
}

type recorder struct{ entries []audit.Entry }

func (r *recorder) Record(ctx context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

var steward = rbac.Actor{FederationID: "fed-1", MemberID: "sam", Role: rbac.RoleSteward}

func newTestService(clock *time.Time) (*Service, *memoryRepo, *recorder) {
	repo := &memoryRepo{}
	rec := &recorder{}
	svc := NewService(repo, staticMembers{"kit": rbac.RoleOffspring, "sam": rbac.RoleSteward, "stella": rbac.RoleSteward, "gina": rbac.RoleGuardian}, rec, nil)
	svc.now = func() time.Time { return *clock }
	return svc, repo, rec
}

func TestResolveActivePicksNewest(t *testing.T) {
	clock := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(&clock)
	ctx := context.Background()

	_, err := svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "payment", Allowed: true, Reason: "allowance"})
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	_, err = svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "payment", Allowed: false, Reason: "grounded"})
	require.NoError(t, err)

	o, ok, err := svc.ResolveActive(ctx, "fed-1", "kit", rbac.EventPayment, clock)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, o.Allowed)
	require.Equal(t, "grounded", o.Reason)
}

func TestExpiredOverrideIsIgnored(t *testing.T) {
	clock := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(&clock)
	ctx := context.Background()

	exp := clock.Add(time.Hour)
	_, err := svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "social_post", Allowed: true, Reason: "weekend", ExpiresAt: &exp})
	require.NoError(t, err)

	_, ok, err := svc.ResolveActive(ctx, "fed-1", "kit", rbac.EventSocialPost, clock.Add(2*time.Hour))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateValidation(t *testing.T) {
	clock := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(&clock)
	ctx := context.Background()

	past := clock.Add(-time.Second)
	_, err := svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "payment", Reason: "x", ExpiresAt: &past})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "payment", Reason: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, steward, CreateInput{MemberID: "ghost", EventType: "payment", Reason: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "unknown", Reason: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	adult := rbac.Actor{FederationID: "fed-1", MemberID: "ada", Role: rbac.RoleAdult}
	_, err = svc.Create(ctx, adult, CreateInput{MemberID: "kit", EventType: "payment", Reason: "x"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRevokeIsIdempotent(t *testing.T) {
	clock := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, rec := newTestService(&clock)
	ctx := context.Background()

	o, err := svc.Create(ctx, steward, CreateInput{MemberID: "kit", EventType: "payment", Allowed: true, Reason: "allowance"})
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	revoked, err := svc.Revoke(ctx, steward, o.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.ExpiresAt)
	require.True(t, revoked.ExpiresAt.Equal(clock))

	clock = clock.Add(time.Minute)
	again, err := svc.Revoke(ctx, steward, o.ID)
	require.NoError(t, err)
	require.True(t, again.ExpiresAt.Equal(revoked.ExpiresAt.UTC()))

	require.Len(t, repo.rows, 1, "revoked overrides are retained")
	require.Len(t, rec.entries, 2)
	require.Equal(t, audit.ActionOverrideRevoke, rec.entries[1].Action)

	_, err = svc.Revoke(ctx, steward, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)

	active, err := svc.List(ctx, "fed-1", false)
	require.NoError(t, err)
	require.Empty(t, active)
	all, err := svc.List(ctx, "fed-1", true)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestStewardCannotTargetPeersOrGuardians(t *testing.T) {
	clock := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := newTestService(&clock)
	ctx := context.Background()

	_, err := svc.Create(ctx, steward, CreateInput{MemberID: "gina", EventType: "payment", Allowed: false, Reason: "lockout"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(ctx, steward, CreateInput{MemberID: "sam", EventType: "treasury_access", Allowed: true, Reason: "self grant"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(ctx, steward, CreateInput{MemberID: "stella", EventType: "payment", Allowed: false, Reason: "peer"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.rows)

	guardian := rbac.Actor{FederationID: "fed-1", MemberID: "gina", Role: rbac.RoleGuardian}
	o, err := svc.Create(ctx, guardian, CreateInput{MemberID: "sam", EventType: "payment", Allowed: false, Reason: "audit hold"})
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, steward, o.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, ok, err := svc.ResolveActive(ctx, "fed-1", "sam", rbac.EventPayment, clock)
	require.NoError(t, err)
	require.True(t, ok, "forbidden revoke must leave the override active")
}

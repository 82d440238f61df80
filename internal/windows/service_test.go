package windows

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

type memoryRepo struct {
	rows []Window
}

func (m *memoryRepo) ForScopes(ctx context.Context, federationID string, role rbac.Role, memberID string, event rbac.EventType) ([]Window, error) {
	var out []Window
	for _, w := range m.rows {
		if w.FederationID != federationID || w.EventType != event {
			continue
		}
		if (w.ScopeType == ScopeRole && w.ScopeID == string(role)) || (w.ScopeType == ScopeMember && w.ScopeID == memberID) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memoryRepo) List(ctx context.Context, federationID string) ([]Window, error) {
	return m.rows, nil
}

func (m *memoryRepo) Insert(ctx context.Context, w Window) error {
	m.rows = append(m.rows, w)
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, federationID string, id uuid.UUID) (Window, error) {
	for _, w := range m.rows {
		if w.ID == id && w.FederationID == federationID {
			return w, nil
		}
	}
	return Window{}, shared.ErrNotFound
}

func (m *memoryRepo) Delete(ctx context.Context, federationID string, id uuid.UUID) (Window, error) {
	for i, w := range m.rows {
		if w.ID == id && w.FederationID == federationID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return w, nil
		}
	}
	return Window{}, shared.ErrNotFound
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

var guardian = rbac.Actor{FederationID: "fed-1", MemberID: "gina", Role: rbac.RoleGuardian}

func newTestService() (*Service, *memoryRepo, *recorder) {
	repo := &memoryRepo{}
	rec := &recorder{}
	svc := NewService(repo, staticMembers{"kit": rbac.RoleOffspring, "sam": rbac.RoleSteward, "gina": rbac.RoleGuardian}, rec, nil)
	svc.now = func() time.Time { return monday10 }
	return svc, repo, rec
}

func TestCreateAndScopeLookup(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, guardian, CreateInput{
		ScopeType: "role", ScopeID: "offspring", EventType: "social_post", WindowType: "scheduled",
		StartTime: "16:00", EndTime: "20:00", DaysOfWeek: []int{5, 1, 1},
	})
	require.NoError(t, err)
	cooldownEnd := monday10.Add(30 * time.Minute)
	_, err = svc.Create(ctx, guardian, CreateInput{
		ScopeType: "member", ScopeID: "kit", EventType: "social_post", WindowType: "cooldown", ExpiresAt: &cooldownEnd,
	})
	require.NoError(t, err)

	ws, err := svc.ForScopes(ctx, "fed-1", rbac.RoleOffspring, "kit", rbac.EventSocialPost)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	require.Equal(t, []int{1, 5}, ws[0].DaysOfWeek)
	require.Equal(t, "UTC", ws[0].Timezone)

	other, err := svc.ForScopes(ctx, "fed-1", rbac.RoleAdult, "ada", rbac.EventSocialPost)
	require.NoError(t, err)
	require.Empty(t, other)
	require.Len(t, rec.entries, 2)

	require.NoError(t, svc.Delete(ctx, guardian, ws[1].ID))
	require.ErrorIs(t, svc.Delete(ctx, guardian, ws[1].ID), shared.ErrNotFound)
	require.Equal(t, audit.ActionWindowDelete, rec.entries[2].Action)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	past := monday10.Add(-time.Minute)

	bad := []CreateInput{
		{ScopeType: "role", ScopeID: "offspring", EventType: "payment", WindowType: "scheduled", StartTime: "25:00", EndTime: "10:00", DaysOfWeek: []int{1}},
		{ScopeType: "role", ScopeID: "offspring", EventType: "payment", WindowType: "scheduled", StartTime: "09:00", EndTime: "10:00"},
		{ScopeType: "role", ScopeID: "offspring", EventType: "payment", WindowType: "scheduled", StartTime: "09:00", EndTime: "10:00", DaysOfWeek: []int{7}},
		{ScopeType: "role", ScopeID: "offspring", EventType: "payment", WindowType: "scheduled", StartTime: "09:00", EndTime: "10:00", DaysOfWeek: []int{1}, Timezone: "Nowhere/City"},
		{ScopeType: "role", ScopeID: "private", EventType: "payment", WindowType: "temporary", ExpiresAt: &past},
		{ScopeType: "member", ScopeID: "ghost", EventType: "payment", WindowType: "temporary", ExpiresAt: &past},
		{ScopeType: "role", ScopeID: "adult", EventType: "payment", WindowType: "temporary"},
		{ScopeType: "role", ScopeID: "adult", EventType: "payment", WindowType: "cooldown", ExpiresAt: &past},
		{ScopeType: "role", ScopeID: "adult", EventType: "nope", WindowType: "cooldown"},
	}
	for i, in := range bad {
		_, err := svc.Create(ctx, guardian, in)
		require.ErrorIs(t, err, shared.ErrValidation, "case %d", i)
	}

	adult := rbac.Actor{FederationID: "fed-1", MemberID: "ada", Role: rbac.RoleAdult}
	_, err := svc.Create(ctx, adult, CreateInput{ScopeType: "role", ScopeID: "offspring", EventType: "payment", WindowType: "cooldown"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestStewardWindowsStayBelowItsLevel(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	steward := rbac.Actor{FederationID: "fed-1", MemberID: "sam", Role: rbac.RoleSteward}
	until := monday10.Add(time.Hour)

	denied := []CreateInput{
		{ScopeType: "role", ScopeID: "guardian", EventType: "payment", WindowType: "cooldown", ExpiresAt: &until},
		{ScopeType: "role", ScopeID: "steward", EventType: "payment", WindowType: "cooldown", ExpiresAt: &until},
		{ScopeType: "member", ScopeID: "gina", EventType: "payment", WindowType: "cooldown", ExpiresAt: &until},
		{ScopeType: "member", ScopeID: "sam", EventType: "payment", WindowType: "temporary", ExpiresAt: &until},
	}
	for i, in := range denied {
		_, err := svc.Create(ctx, steward, in)
		require.ErrorIs(t, err, shared.ErrForbidden, "case %d", i)
	}
	require.Empty(t, repo.rows)

	own, err := svc.Create(ctx, steward, CreateInput{ScopeType: "member", ScopeID: "kit", EventType: "payment", WindowType: "cooldown", ExpiresAt: &until})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, steward, own.ID))

	guarded, err := svc.Create(ctx, guardian, CreateInput{ScopeType: "role", ScopeID: "steward", EventType: "payment", WindowType: "cooldown", ExpiresAt: &until})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, steward, guarded.ID), shared.ErrForbidden)
	require.Len(t, repo.rows, 1)
}

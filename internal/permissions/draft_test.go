package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

func TestDraftCommitTouchesOnlyEditedRoles(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	_, err := svc.SetBatch(ctx, guardian, "adult", []Rule{
		{EventType: "payment", CanSign: true},
		{EventType: "invoice", CanSign: true},
	})
	require.NoError(t, err)
	_, err = svc.SetBatch(ctx, guardian, "offspring", []Rule{{EventType: "social_post", CanSign: true}})
	require.NoError(t, err)

	base, err := svc.List(ctx, "fed-1")
	require.NoError(t, err)
	draft := NewDraft("fed-1", base)

	require.NoError(t, draft.Apply("adult", Rule{EventType: "payment", CanSign: true, RequiresApproval: true}))
	require.NoError(t, draft.Apply("steward", Rule{EventType: "policy_update", CanSign: true}))
	require.NoError(t, draft.Apply("steward", Rule{EventType: "key_rotation", CanSign: true}))
	draft.Discard(Key{Role: rbac.RoleSteward, EventType: rbac.EventKeyRotation})
	require.Len(t, draft.Pending(), 2)

	eff := draft.Effective(Key{Role: rbac.RoleAdult, EventType: rbac.EventPayment})
	require.True(t, eff.RequiresApproval)

	sets, err := draft.Commit(ctx, svc, guardian)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.Len(t, sets[rbac.RoleAdult], 2, "untouched adult rules are carried over")
	require.Empty(t, draft.Pending())

	invoice, err := svc.Get(ctx, "fed-1", rbac.RoleAdult, rbac.EventInvoice)
	require.NoError(t, err)
	require.True(t, invoice.CanSign)
	payment, err := svc.Get(ctx, "fed-1", rbac.RoleAdult, rbac.EventPayment)
	require.NoError(t, err)
	require.True(t, payment.RequiresApproval)
	post, err := svc.Get(ctx, "fed-1", rbac.RoleOffspring, rbac.EventSocialPost)
	require.NoError(t, err)
	require.True(t, post.CanSign)
	rotation, err := svc.Get(ctx, "fed-1", rbac.RoleSteward, rbac.EventKeyRotation)
	require.NoError(t, err)
	require.False(t, rotation.CanSign)
}

func TestDraftRejectsInvalidEdits(t *testing.T) {
	draft := NewDraft("fed-1", nil)
	require.ErrorIs(t, draft.Apply("private", Rule{EventType: "payment"}), shared.ErrValidation)
	require.ErrorIs(t, draft.Apply("adult", Rule{EventType: "nope"}), shared.ErrValidation)

	_, err := draft.Commit(context.Background(), NewService(newMemoryRepo(), nil, nil), guardian)
	require.ErrorIs(t, err, shared.ErrValidation)
}

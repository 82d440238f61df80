package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

func newTestChecker(f *fixture, members memberLookup) (*Checker, *recordingAuditor, *recordingObserver) {
	auditor := &recordingAuditor{}
	observer := &recordingObserver{}
	c := NewChecker(members, f.resolver, auditor, observer, nil)
	c.now = func() time.Time { return monday }
	return c, auditor, observer
}

func TestCheckerRecordsAuditAndMetrics(t *testing.T) {
	f := newFixture()
	f.rules.set(rbac.RoleAdult, rbac.EventPayment, true, true, nil)
	checker, auditor, observer := newTestChecker(f, memberLookup{fed + "/a1": rbac.RoleAdult})

	d, err := checker.Check(context.Background(), CheckInput{FederationID: fed, RequestedBy: "s1", MemberID: "a1", EventType: "payment"})
	require.NoError(t, err)
	assert.True(t, d.RequiresApproval)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, audit.ActionPermissionCheck, entry.Action)
	assert.Equal(t, "s1", entry.ActorID)
	assert.Equal(t, "a1", entry.EntityID)
	assert.Equal(t, "requires_approval", entry.Meta["reasonCode"])
	assert.Equal(t, "adult", entry.Meta["role"])
	assert.Equal(t, monday, entry.At)

	require.Equal(t, []sample{{outcome: "approval", reason: "requires_approval"}}, observer.samples)
}

func TestCheckerUnknownMemberFailsClosed(t *testing.T) {
	f := newFixture()
	checker, auditor, observer := newTestChecker(f, memberLookup{})

	d, err := checker.Check(context.Background(), CheckInput{FederationID: fed, RequestedBy: "ghost", MemberID: "ghost", EventType: "payment"})
	require.ErrorIs(t, err, ErrResolution)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, FailClosed(), d)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "resolution_error", auditor.entries[0].Meta["reasonCode"])
	require.Equal(t, []sample{{outcome: "error", reason: "resolution_error"}}, observer.samples)
}

func TestCheckerUnknownEventFailsClosed(t *testing.T) {
	f := newFixture()
	checker, _, _ := newTestChecker(f, memberLookup{fed + "/a1": rbac.RoleAdult})

	d, err := checker.Check(context.Background(), CheckInput{FederationID: fed, MemberID: "a1", EventType: "teleport"})
	require.ErrorIs(t, err, rbac.ErrUnknownEventType)
	assert.Equal(t, FailClosed(), d)
}

func TestCheckerAuditFailureDeniesAllowedDecision(t *testing.T) {
	f := newFixture()
	f.rules.set(rbac.RoleAdult, rbac.EventPayment, true, false, nil)
	checker, auditor, _ := newTestChecker(f, memberLookup{fed + "/a1": rbac.RoleAdult})
	auditor.err = errors.New("disk full")

	d, err := checker.Check(context.Background(), CheckInput{FederationID: fed, MemberID: "a1", EventType: "payment"})
	require.ErrorIs(t, err, ErrResolution)
	assert.Equal(t, FailClosed(), d)
}

func TestCheckerAuditFailureKeepsDenial(t *testing.T) {
	f := newFixture()
	checker, auditor, _ := newTestChecker(f, memberLookup{fed + "/a1": rbac.RoleAdult})
	auditor.err = errors.New("disk full")

	d, err := checker.Check(context.Background(), CheckInput{FederationID: fed, MemberID: "a1", EventType: "payment"})
	require.NoError(t, err)
	assert.Equal(t, ReasonRoleNotAllowed, d.ReasonCode)
}

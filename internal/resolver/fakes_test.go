package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthguard/hearthguard/internal/audit"
	"github.com/hearthguard/hearthguard/internal/overrides"
	"github.com/hearthguard/hearthguard/internal/permissions"
	"github.com/hearthguard/hearthguard/internal/ratelimit"
	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
	"github.com/hearthguard/hearthguard/internal/windows"
)

const fed = "fed-1"

type ruleStore struct {
	rules map[permissions.Key]permissions.RolePermission
	err   error
}

func newRuleStore() *ruleStore {
	return &ruleStore{rules: map[permissions.Key]permissions.RolePermission{}}
}

func (s *ruleStore) set(role rbac.Role, event rbac.EventType, canSign, approval bool, maxCount *int) {
	s.rules[permissions.Key{Role: role, EventType: event}] = permissions.RolePermission{
		FederationID: fed, Role: role, EventType: event,
		CanSign: canSign, RequiresApproval: approval, MaxDailyCount: maxCount,
	}
}

func (s *ruleStore) Get(ctx context.Context, federationID string, role rbac.Role, event rbac.EventType) (permissions.RolePermission, error) {
	if s.err != nil {
		return permissions.RolePermission{}, s.err
	}
	if p, ok := s.rules[permissions.Key{Role: role, EventType: event}]; ok {
		return p, nil
	}
	return permissions.RolePermission{FederationID: federationID, Role: role, EventType: event}, nil
}

type overrideStore struct {
	rows []overrides.Override
}

func (s *overrideStore) add(member string, event rbac.EventType, allowed bool, created time.Time, expires *time.Time) {
	s.rows = append(s.rows, overrides.Override{
		ID: uuid.New(), FederationID: fed, MemberID: member, EventType: event,
		Allowed: allowed, Reason: "test", CreatedBy: "g1", CreatedAt: created, ExpiresAt: expires,
	})
}

func (s *overrideStore) ResolveActive(ctx context.Context, federationID, memberID string, event rbac.EventType, now time.Time) (overrides.Override, bool, error) {
	var best *overrides.Override
	for i := range s.rows {
		o := s.rows[i]
		if o.FederationID != federationID || o.MemberID != memberID || o.EventType != event || !o.ActiveAt(now) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			best = &s.rows[i]
		}
	}
	if best == nil {
		return overrides.Override{}, false, nil
	}
	return *best, true, nil
}

type windowStore struct {
	rows []windows.Window
}

func (s *windowStore) ForScopes(ctx context.Context, federationID string, role rbac.Role, memberID string, event rbac.EventType) ([]windows.Window, error) {
	var out []windows.Window
	for _, w := range s.rows {
		if w.FederationID != federationID || w.EventType != event {
			continue
		}
		if (w.ScopeType == windows.ScopeRole && w.ScopeID == string(role)) ||
			(w.ScopeType == windows.ScopeMember && w.ScopeID == memberID) {
			out = append(out, w)
		}
	}
	return out, nil
}

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *memoryCounter) Increment(ctx context.Context, federationID, memberID string, event rbac.EventType, day time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	key := fmt.Sprintf("%s|%s|%s|%s", federationID, memberID, event, day.Format("2006-01-02"))
	c.counts[key]++
	return c.counts[key], nil
}

func (c *memoryCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

type fixture struct {
	rules     *ruleStore
	overrides *overrideStore
	windows   *windowStore
	counter   *memoryCounter
	resolver  *Resolver
}

func newFixture() *fixture {
	f := &fixture{
		rules:     newRuleStore(),
		overrides: &overrideStore{},
		windows:   &windowStore{},
		counter:   &memoryCounter{},
	}
	f.resolver = New(f.rules, f.overrides, f.windows, ratelimit.NewLimiter(f.counter))
	return f
}

type memberLookup map[string]rbac.Role

func (m memberLookup) RoleOf(ctx context.Context, federationID, memberID string) (rbac.Role, error) {
	if role, ok := m[federationID+"/"+memberID]; ok {
		return role, nil
	}
	return "", shared.ErrNotFound
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

type sample struct {
	outcome, reason string
}

type recordingObserver struct {
	mu      sync.Mutex
	samples []sample
}

func (o *recordingObserver) ObserveDecision(outcome, reason string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, sample{outcome: outcome, reason: reason})
}

var errStoreDown = errors.New("store down")

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

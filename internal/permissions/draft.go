package permissions

import (
	"context"
	"fmt"
	"sort"

	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

// Committer persists a set of whole-role rule replacements atomically.
type Committer interface {
	ReplaceRoles(ctx context.Context, actor rbac.Actor, sets map[rbac.Role][]RolePermission) error
}

// Draft buffers tentative rule edits over a base snapshot until Commit.
// A Draft is not safe for concurrent use.
type Draft struct {
	federationID string
	base         map[Key]RolePermission
	pending      map[Key]RolePermission
}

// NewDraft starts a draft over the current rules of a federation.
func NewDraft(federationID string, base []RolePermission) *Draft {
	d := &Draft{
		federationID: federationID,
		base:         make(map[Key]RolePermission, len(base)),
		pending:      make(map[Key]RolePermission),
	}
	for _, p := range base {
		d.base[p.key()] = p
	}
	return d
}

// Apply stages one rule edit, replacing any earlier edit of the same key.
func (d *Draft) Apply(role string, rule Rule) error {
	target, err := parseTargetRole(role)
	if err != nil {
		return err
	}
	p, err := toPermission(d.federationID, target, rule)
	if err != nil {
		return err
	}
	d.pending[p.key()] = p
	return nil
}

// Discard drops the staged edit for key, if any.
func (d *Draft) Discard(key Key) {
	delete(d.pending, key)
}

// DiscardAll drops every staged edit.
func (d *Draft) DiscardAll() {
	d.pending = make(map[Key]RolePermission)
}

// Pending lists staged edits ordered by role then event type.
func (d *Draft) Pending() []RolePermission {
	out := make([]RolePermission, 0, len(d.pending))
	for _, p := range d.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].EventType < out[j].EventType
	})
	return out
}

// Effective returns the rule that would apply after Commit.
func (d *Draft) Effective(key Key) RolePermission {
	if p, ok := d.pending[key]; ok {
		return p
	}
	if p, ok := d.base[key]; ok {
		return p
	}
	return RolePermission{FederationID: d.federationID, Role: key.Role, EventType: key.EventType}
}

// Commit submits every touched role, base rules overlaid with staged edits,
// as one atomic replacement. Staged edits are cleared on success.
func (d *Draft) Commit(ctx context.Context, c Committer, actor rbac.Actor) (map[rbac.Role][]RolePermission, error) {
	if len(d.pending) == 0 {
		return nil, fmt.Errorf("%w: draft has no changes", shared.ErrValidation)
	}
	if actor.FederationID != d.federationID {
		return nil, fmt.Errorf("%w: draft belongs to another federation", shared.ErrForbidden)
	}
	touched := make(map[rbac.Role]map[rbac.EventType]RolePermission)
	for k := range d.pending {
		if _, ok := touched[k.Role]; ok {
			continue
		}
		rules := make(map[rbac.EventType]RolePermission)
		for bk, p := range d.base {
			if bk.Role == k.Role {
				rules[bk.EventType] = p
			}
		}
		touched[k.Role] = rules
	}
	for k, p := range d.pending {
		touched[k.Role][k.EventType] = p
	}
	sets := make(map[rbac.Role][]RolePermission, len(touched))
	for role, rules := range touched {
		set := make([]RolePermission, 0, len(rules))
		for _, p := range rules {
			set = append(set, p)
		}
		sort.Slice(set, func(i, j int) bool { return set[i].EventType < set[j].EventType })
		sets[role] = set
	}
	if err := c.ReplaceRoles(ctx, actor, sets); err != nil {
		return nil, err
	}
	for k, p := range d.pending {
		d.base[k] = p
	}
	d.DiscardAll()
	return sets, nil
}

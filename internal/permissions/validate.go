package permissions

import (
	"fmt"

	"github.com/hearthguard/hearthguard/internal/rbac"
	"github.com/hearthguard/hearthguard/internal/shared"
)

func parseTargetRole(raw string) (rbac.Role, error) {
	role, err := rbac.ParseRole(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if role == rbac.RolePrivate {
		return "", fmt.Errorf("%w: private role has no base rules", shared.ErrValidation)
	}
	return role, nil
}

func toPermission(federationID string, role rbac.Role, rule Rule) (RolePermission, error) {
	event, err := rbac.ParseEventType(rule.EventType)
	if err != nil {
		return RolePermission{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if rule.MaxDailyCount != nil && *rule.MaxDailyCount < 1 {
		return RolePermission{}, fmt.Errorf("%w: maxDailyCount must be at least 1", shared.ErrValidation)
	}
	p := RolePermission{
		FederationID:     federationID,
		Role:             role,
		EventType:        event,
		CanSign:          rule.CanSign,
		RequiresApproval: rule.RequiresApproval,
	}
	if rule.MaxDailyCount != nil {
		v := *rule.MaxDailyCount
		p.MaxDailyCount = &v
	}
	return p, nil
}

// normalizeBatch validates a full rule set for one role.
func normalizeBatch(federationID string, role rbac.Role, rules []Rule) ([]RolePermission, error) {
	seen := make(map[rbac.EventType]struct{}, len(rules))
	out := make([]RolePermission, 0, len(rules))
	for _, rule := range rules {
		p, err := toPermission(federationID, role, rule)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.EventType]; dup {
			return nil, fmt.Errorf("%w: duplicate event type %s", shared.ErrValidation, p.EventType)
		}
		seen[p.EventType] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

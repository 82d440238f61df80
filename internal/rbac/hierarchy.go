package rbac

// ChangeCheck is the outcome of a role change eligibility check.
type ChangeCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

var levels = map[Role]int{
	RoleOffspring: 1,
	RoleAdult:     2,
	RoleSteward:   3,
	RoleGuardian:  4,
}

// Level returns the rank of a hierarchical role. Private has no level.
func Level(r Role) (int, bool) {
	lvl, ok := levels[r]
	return lvl, ok
}

// MinApproverRole is the lowest role allowed to decide approval requests.
func MinApproverRole() Role {
	return RoleSteward
}

// AtLeast reports whether r is hierarchical and ranks at or above min.
func AtLeast(r, min Role) bool {
	have, ok := Level(r)
	if !ok {
		return false
	}
	want, ok := Level(min)
	if !ok {
		return false
	}
	return have >= want
}

// CanManagePolicy reports whether the role may edit rules, overrides and windows.
func CanManagePolicy(r Role) bool {
	return AtLeast(r, RoleSteward)
}

// CanApprove reports whether the role may decide approval requests.
func CanApprove(r Role) bool {
	return AtLeast(r, MinApproverRole())
}

// CanActOn reports whether an actor holding actorRole may edit policy aimed
// at a member or role holding target. Guardians may target anyone; a steward
// only roles strictly below its own, which also excludes itself.
func CanActOn(actorRole, target Role) bool {
	if actorRole == RoleGuardian {
		return true
	}
	if !CanManagePolicy(actorRole) {
		return false
	}
	have, _ := Level(actorRole)
	want, ok := Level(target)
	return ok && want < have
}

// CanChangeRole reports whether an actor holding actorRole may move a member
// from targetCurrent to desired.
func CanChangeRole(actorRole, targetCurrent, desired Role) ChangeCheck {
	if actorRole == RolePrivate || targetCurrent == RolePrivate || desired == RolePrivate {
		return ChangeCheck{Reason: "private role is outside the hierarchy"}
	}
	actorLevel, ok := Level(actorRole)
	if !ok {
		return ChangeCheck{Reason: "unknown actor role"}
	}
	targetLevel, ok := Level(targetCurrent)
	if !ok {
		return ChangeCheck{Reason: "unknown target role"}
	}
	desiredLevel, ok := Level(desired)
	if !ok {
		return ChangeCheck{Reason: "unknown desired role"}
	}

	switch actorRole {
	case RoleGuardian:
	case RoleSteward:
		if targetCurrent == RoleGuardian || desired == RoleGuardian {
			return ChangeCheck{Reason: "steward cannot act on guardian roles"}
		}
		if !managedBySteward(targetCurrent) || !managedBySteward(desired) {
			return ChangeCheck{Reason: "steward may only manage offspring and adult roles"}
		}
	case RoleAdult:
		if targetCurrent != RoleOffspring || desired != RoleOffspring {
			return ChangeCheck{Reason: "adult may only manage offspring members"}
		}
	default:
		return ChangeCheck{Reason: "offspring cannot change roles"}
	}

	if targetLevel >= actorLevel {
		return ChangeCheck{Reason: "cannot manage a peer or superior"}
	}
	if desiredLevel >= actorLevel {
		return ChangeCheck{Reason: "cannot grant a role at or above your own"}
	}
	return ChangeCheck{Valid: true}
}

func managedBySteward(r Role) bool {
	return r == RoleOffspring || r == RoleAdult
}

package services

import "github.com/LukaszDygon/sbcw-kiro-sub000/domain"

// The access policy evaluator is pure: role comparison over a fixed total
// order plus membership checks against the fetched permission set. Role does
// not determine permissions; it only gates views that need a coarse level.

var roleRanks = map[domain.Role]int{
	domain.RoleEmployee: 1,
	domain.RoleAdmin:    2,
	domain.RoleFinance:  3,
}

// RoleRank returns the position of a role in the hierarchy. Unknown roles
// rank below every real one.
func RoleRank(role domain.Role) int {
	return roleRanks[role]
}

// SatisfiesRole reports whether a user's role meets the required level.
// A required role outside the hierarchy is unsatisfiable, so a gate built
// on bad data stays closed rather than falling open.
func SatisfiesRole(userRole, required domain.Role) bool {
	requiredRank, ok := roleRanks[required]
	if !ok {
		return false
	}
	return RoleRank(userRole) >= requiredRank
}

// HasAny reports whether at least one required permission is in the set.
// With no required permissions it is vacuously false.
func HasAny(set []string, required ...string) bool {
	for _, want := range required {
		for _, have := range set {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasAll reports whether every required permission is in the set. With no
// required permissions it is vacuously true.
func HasAll(set []string, required ...string) bool {
	for _, want := range required {
		found := false
		for _, have := range set {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

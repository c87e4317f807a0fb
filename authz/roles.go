// Package authz holds the fixed role hierarchy and the decision policy
// that gates state-changing operations.
package authz

const (
	RoleViewer = "viewer"
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// Rank maps a role to its position in the total order
// owner > admin > member > viewer. Unknown roles rank 0 and are never
// sufficient for a gated action.
func Rank(role string) int {
	switch role {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// ValidRole reports whether role is part of the hierarchy.
func ValidRole(role string) bool {
	return Rank(role) > 0
}

// Allowed reports whether an actor with the given role may perform an
// action requiring the minimum role. The comparison is strict: an
// unknown actor role always fails, an unknown minimum can never be
// satisfied by an unknown actor.
func Allowed(actorRole, minimum string) bool {
	r := Rank(actorRole)
	return r > 0 && r >= Rank(minimum)
}

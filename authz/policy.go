package authz

import "opsmanager/models"

// Built-in mapping from approval risk level to the minimum role allowed
// to decide it. Overridable per level through APPROVAL_POLICY.
var defaultDeciderRole = map[string]string{
	models.RiskNone:     RoleMember,
	models.RiskLow:      RoleMember,
	models.RiskMedium:   RoleAdmin,
	models.RiskHigh:     RoleOwner,
	models.RiskCritical: RoleOwner,
}

// DecisionPolicy resolves the minimum decider role for a risk level.
// Overrides naming an unknown role are ignored rather than silently
// weakening the gate. Unknown risk levels require owner.
func DecisionPolicy(riskLevel string, overrides map[string]string) string {
	if role, ok := overrides[riskLevel]; ok && ValidRole(role) {
		return role
	}
	if role, ok := defaultDeciderRole[riskLevel]; ok {
		return role
	}
	return RoleOwner
}

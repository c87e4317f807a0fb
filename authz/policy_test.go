package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"opsmanager/models"
)

func TestDecisionPolicyDefaults(t *testing.T) {
	assert.Equal(t, RoleMember, DecisionPolicy(models.RiskNone, nil))
	assert.Equal(t, RoleMember, DecisionPolicy(models.RiskLow, nil))
	assert.Equal(t, RoleAdmin, DecisionPolicy(models.RiskMedium, nil))
	assert.Equal(t, RoleOwner, DecisionPolicy(models.RiskHigh, nil))
	assert.Equal(t, RoleOwner, DecisionPolicy(models.RiskCritical, nil))

	// Unknown risk levels gate at the top.
	assert.Equal(t, RoleOwner, DecisionPolicy("mystery", nil))
}

func TestDecisionPolicyOverrides(t *testing.T) {
	overrides := map[string]string{
		models.RiskMedium: RoleOwner,
		models.RiskHigh:   "not-a-role",
	}

	assert.Equal(t, RoleOwner, DecisionPolicy(models.RiskMedium, overrides))
	// Invalid overrides are ignored, not applied.
	assert.Equal(t, RoleOwner, DecisionPolicy(models.RiskHigh, overrides))
	// Untouched levels keep defaults.
	assert.Equal(t, RoleMember, DecisionPolicy(models.RiskLow, overrides))
}

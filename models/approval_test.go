package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatusLazyExpiry(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	pendingOverdue := Approval{Status: ApprovalPending, ExpiresAt: &past}
	assert.Equal(t, ApprovalExpired, pendingOverdue.EffectiveStatus(now))
	assert.False(t, pendingOverdue.Decidable(now))

	pendingFresh := Approval{Status: ApprovalPending, ExpiresAt: &future}
	assert.Equal(t, ApprovalPending, pendingFresh.EffectiveStatus(now))
	assert.True(t, pendingFresh.Decidable(now))

	pendingNoExpiry := Approval{Status: ApprovalPending}
	assert.Equal(t, ApprovalPending, pendingNoExpiry.EffectiveStatus(now))
	assert.True(t, pendingNoExpiry.Decidable(now))

	// Terminal states are never decidable and never re-labelled, even
	// with an expiry in the past.
	for _, status := range []string{ApprovalApproved, ApprovalRejected, ApprovalExpired} {
		a := Approval{Status: status, ExpiresAt: &past}
		assert.Equal(t, status, a.EffectiveStatus(now))
		assert.False(t, a.Decidable(now))
	}
}

func TestValidRiskLevel(t *testing.T) {
	for _, level := range []string{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical} {
		assert.True(t, ValidRiskLevel(level), level)
	}
	assert.False(t, ValidRiskLevel(""))
	assert.False(t, ValidRiskLevel("severe"))
}

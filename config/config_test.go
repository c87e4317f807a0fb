package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseApprovalPolicy(t *testing.T) {
	assert.Empty(t, ParseApprovalPolicy(""))

	policy := ParseApprovalPolicy("low=member, high=owner")
	assert.Equal(t, map[string]string{"low": "member", "high": "owner"}, policy)

	// Case is normalized.
	policy = ParseApprovalPolicy("Medium=Admin")
	assert.Equal(t, map[string]string{"medium": "admin"}, policy)

	// Malformed pairs are skipped, valid ones kept.
	policy = ParseApprovalPolicy("low=member,broken,=owner,high=")
	assert.Equal(t, map[string]string{"low": "member"}, policy)
}

package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{RoleOwner, 4},
		{RoleAdmin, 3},
		{RoleMember, 2},
		{RoleViewer, 1},
		{"", 0},
		{"superadmin", 0},
		{"OWNER", 0}, // roles are case sensitive
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Rank(tc.role), "role %q", tc.role)
	}
}

func TestAllowed(t *testing.T) {
	// Every role below the required rank must be denied.
	ordered := []string{RoleViewer, RoleMember, RoleAdmin, RoleOwner}
	for i, minimum := range ordered {
		for j, actor := range ordered {
			got := Allowed(actor, minimum)
			assert.Equal(t, j >= i, got, "actor=%s minimum=%s", actor, minimum)
		}
	}

	// Unknown roles can never act, and can never be satisfied by
	// another unknown.
	assert.False(t, Allowed("ghost", RoleViewer))
	assert.False(t, Allowed("ghost", "ghost"))
	assert.False(t, Allowed("", RoleViewer))
}

func TestRequire(t *testing.T) {
	ctx := ContextWithActor(context.Background(), Actor{
		ProfileID:      "p1",
		Role:           RoleMember,
		OrganizationID: "org1",
	})

	actor, err := Require(ctx, RoleMember)
	assert.NoError(t, err)
	assert.Equal(t, "p1", actor.ProfileID)

	_, err = Require(ctx, RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = Require(context.Background(), RoleViewer)
	assert.ErrorIs(t, err, ErrNoActor)
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanPerformMatchesAllowList(t *testing.T) {
	expected := map[Action][]Role{
		ActionSubmit:    {RoleAdmin, RoleEditor},
		ActionApprove:   {RoleAdmin, RoleReviewer, RolePublisher},
		ActionReject:    {RoleAdmin, RoleReviewer},
		ActionPublish:   {RoleAdmin, RolePublisher},
		ActionUnpublish: {RoleAdmin, RolePublisher},
		ActionReset:     {RoleAdmin},
	}

	for _, action := range Actions {
		allowed := map[Role]bool{}
		for _, r := range expected[action] {
			allowed[r] = true
		}
		for _, role := range Roles {
			assert.Equal(t, allowed[role], CanPerform(role, action), "role=%s action=%s", role, action)
		}
	}
}

func TestAdminCanDoEverything(t *testing.T) {
	for _, action := range Actions {
		assert.True(t, CanPerform(RoleAdmin, action), action)
	}
}

func TestViewerCannotSubmit(t *testing.T) {
	assert.False(t, CanPerform(RoleViewer, ActionSubmit))
	assert.Empty(t, Allowed(RoleViewer))
}

func TestUnknownActionDenied(t *testing.T) {
	assert.False(t, CanPerform(RoleAdmin, Action("archive")))
}

func TestAllowedKeepsDisplayOrder(t *testing.T) {
	assert.Equal(t, []Action{ActionApprove, ActionPublish, ActionUnpublish}, Allowed(RolePublisher))
}

func TestParseRoleAndAction(t *testing.T) {
	role, err := ParseRole(" reviewer ")
	require.NoError(t, err)
	assert.Equal(t, RoleReviewer, role)

	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrUnknownRole)

	action, err := ParseAction("PUBLISH")
	require.NoError(t, err)
	assert.Equal(t, ActionPublish, action)

	_, err = ParseAction("archive")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

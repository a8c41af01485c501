package role_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/role"
)

func TestParse_KnownRoles(t *testing.T) {
	cases := map[string]role.Role{
		"":           role.RoleNone,
		"staff":      role.RoleStaff,
		"admin":      role.RoleAdmin,
		"superadmin": role.RoleSuperadmin,
	}

	for input, want := range cases {
		got, err := role.Parse(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestParse_UnknownRole(t *testing.T) {
	_, err := role.Parse("owner")
	require.Error(t, err)
	assert.ErrorIs(t, err, role.ErrUnknownRole)
}

func TestString_RoundTrip(t *testing.T) {
	for _, r := range []role.Role{role.RoleNone, role.RoleStaff, role.RoleAdmin, role.RoleSuperadmin} {
		parsed, err := role.Parse(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}

func TestOutranks(t *testing.T) {
	assert.True(t, role.RoleSuperadmin.Outranks(role.RoleAdmin))
	assert.True(t, role.RoleAdmin.Outranks(role.RoleStaff))
	assert.True(t, role.RoleStaff.Outranks(role.RoleNone))
	assert.False(t, role.RoleStaff.Outranks(role.RoleAdmin))
	assert.False(t, role.RoleAdmin.Outranks(role.RoleAdmin))
}

func TestJSON_Marshal(t *testing.T) {
	data, err := json.Marshal(role.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, `"admin"`, string(data))
}

func TestJSON_UnmarshalRejectsUnknown(t *testing.T) {
	var r role.Role
	err := json.Unmarshal([]byte(`"root"`), &r)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`"staff"`), &r)
	require.NoError(t, err)
	assert.Equal(t, role.RoleStaff, r)
}

package orgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRole_IsValid(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleHead, RoleLead, RoleMember} {
		require.True(t, r.IsValid(), "role %s should be valid", r)
	}
	require.False(t, Role("superuser").IsValid())
	require.False(t, Role("").IsValid())
}

func TestRole_Absolute(t *testing.T) {
	require.True(t, RoleOwner.Absolute())
	require.True(t, RoleAdmin.Absolute())
	require.False(t, RoleHead.Absolute())
	require.False(t, RoleLead.Absolute())
	require.False(t, RoleMember.Absolute())
}

func TestRole_CanManage_OwnerManagesEveryone(t *testing.T) {
	for _, target := range []Role{RoleOwner, RoleAdmin, RoleHead, RoleLead, RoleMember} {
		require.True(t, RoleOwner.CanManage(target), "owner should manage %s", target)
	}
}

func TestRole_CanManage_RequiresStrictlyHigherRank(t *testing.T) {
	require.True(t, RoleAdmin.CanManage(RoleHead))
	require.True(t, RoleHead.CanManage(RoleLead))
	require.True(t, RoleLead.CanManage(RoleMember))

	require.False(t, RoleAdmin.CanManage(RoleAdmin))
	require.False(t, RoleHead.CanManage(RoleHead))
	require.False(t, RoleMember.CanManage(RoleMember))
	require.False(t, RoleLead.CanManage(RoleHead))
	require.False(t, RoleAdmin.CanManage(RoleOwner))
}

func TestRole_CanMutateOrg(t *testing.T) {
	require.True(t, RoleOwner.CanMutateOrg())
	require.True(t, RoleAdmin.CanMutateOrg())
	require.False(t, RoleHead.CanMutateOrg())
	require.False(t, RoleLead.CanMutateOrg())
	require.False(t, RoleMember.CanMutateOrg())
}

func TestAssignableRoles(t *testing.T) {
	require.Equal(t, []Role{RoleMember, RoleLead, RoleHead, RoleAdmin}, AssignableRoles(RoleOwner))
	require.Equal(t, []Role{RoleMember, RoleLead, RoleHead}, AssignableRoles(RoleAdmin))
	require.Equal(t, []Role{RoleMember}, AssignableRoles(RoleLead))
	require.Empty(t, AssignableRoles(RoleMember))
}

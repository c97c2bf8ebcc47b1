package funds

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/directory"
)

func TestNextRole(t *testing.T) {
	cases := []struct {
		role directory.Role
		next directory.Role
	}{
		{directory.RoleFactorySub, directory.RoleFactory},
		{directory.RoleFactory, directory.RoleSupplier},
		{directory.RoleSupplierSub, directory.RoleSupplier},
		{directory.RoleSupplier, directory.RoleAdmin},
		{directory.RoleSales, directory.RoleAdmin},
		{directory.RoleProductDev, directory.RoleAdmin},
		{directory.RoleAdmin, directory.RoleSuperAdmin},
	}
	for _, tc := range cases {
		next, ok := NextRole(tc.role)
		require.True(t, ok, "role %s should have a next approver role", tc.role)
		require.Equal(t, tc.next, next)
	}
}

func TestNextRoleChainEndsAtSuperAdmin(t *testing.T) {
	_, ok := NextRole(directory.RoleSuperAdmin)
	require.False(t, ok)
}

package funds

import "github.com/cofund/cofund/internal/directory"

// approvalChain maps each role to the role that must sign off next.
// A missing next role means the chain ends there.
var approvalChain = map[directory.Role]directory.Role{
	directory.RoleFactorySub:  directory.RoleFactory,
	directory.RoleFactory:     directory.RoleSupplier,
	directory.RoleSupplierSub: directory.RoleSupplier,
	directory.RoleSupplier:    directory.RoleAdmin,
	directory.RoleSales:       directory.RoleAdmin,
	directory.RoleProductDev:  directory.RoleAdmin,
	directory.RoleAdmin:       directory.RoleSuperAdmin,
}

// NextRole returns the approver role that follows the given role, or
// false when the chain ends.
func NextRole(role directory.Role) (directory.Role, bool) {
	next, ok := approvalChain[role]
	return next, ok
}

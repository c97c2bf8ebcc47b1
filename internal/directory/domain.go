package directory

import "time"

// Role enumerates the fixed set of account roles.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleProductDev  Role = "product_dev"
	RoleSales       Role = "sales"
	RoleSupplier    Role = "supplier"
	RoleSupplierSub Role = "supplier_sub"
	RoleFactory     Role = "factory"
	RoleFactorySub  Role = "factory_sub"
)

// User account statuses.
const (
	StatusActive   = 1
	StatusDisabled = 0
)

// User represents an account in the identity directory.
type User struct {
	ID        int64
	Username  string
	Role      Role
	ParentID  *int64
	Status    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account may act.
func (u User) IsActive() bool {
	return u.Status == StatusActive
}

// IsSupplierFamily reports whether the role participates in supplier bidding.
func (r Role) IsSupplierFamily() bool {
	return r == RoleSupplier || r == RoleSupplierSub
}

// IsAdministrative reports whether the role carries admin authority.
func (r Role) IsAdministrative() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// Valid reports whether the role belongs to the fixed set.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleProductDev, RoleSales,
		RoleSupplier, RoleSupplierSub, RoleFactory, RoleFactorySub:
		return true
	}
	return false
}

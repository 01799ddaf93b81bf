package enums

import "fmt"

// Role is the back-office role carried in the actor's access token.
type Role string

const (
	RoleAdmin         Role = "Admin"
	RoleBranchOfficer Role = "Branch Officer"
	RoleCashier       Role = "Cashier"
)

var validRoles = []Role{
	RoleAdmin,
	RoleBranchOfficer,
	RoleCashier,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

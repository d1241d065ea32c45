package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Supervises attendance and shifts
	RoleEmployee Role = "employee" // Clocks in for themselves only
	RolePending  Role = "pending"  // Still in onboarding
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleEmployee, RolePending:
		return true
	}
	return false
}

// IsSelfOnly reports whether the role may only act on its own employee record.
func (r Role) IsSelfOnly() bool {
	return r == RoleEmployee
}

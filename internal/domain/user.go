package domain

// Role enumerates portal roles.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleAgent    Role = "agent"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleAgent, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User is a portal account from the user directory.
type User struct {
	ID     string
	Name   string
	Email  string
	Role   Role
	Active bool
}

// AssigneeCandidate is computed per balancer call and never cached.
type AssigneeCandidate struct {
	ID        string
	Name      string
	Role      Role
	OpenCount int
}

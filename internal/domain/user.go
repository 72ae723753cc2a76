package domain

// User is an end user known to the user directory.
type User struct {
	UserName     string
	PasswordHash string
	Authorities  []string
}

// Authorities granted to users and clients.
const (
	RoleUserAdmin   = "ROLE_USER_ADMIN"
	RoleClientAdmin = "ROLE_CLIENT_ADMIN"
)

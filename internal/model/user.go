package model

// Role IDs. Role 1 is the administrator role; new accounts default to 2.
const (
	RoleAdmin int = 1
	RoleSales int = 2
)

// User is a CRM account. PasswordHash is a bcrypt hash and never serialized.
type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	RoleID       int    `json:"role_id" db:"role_id"`
	TeamID       *int64 `json:"team_id,omitempty" db:"team_id"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.RoleID == RoleAdmin
}

package model

import "time"

// Role names carried in bearer tokens and stored in users.role.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleFaculty || r == RoleAdmin
}

// User represents an account record as stored in the `users` table.  Users
// are created and edited by the registration service; this service only
// reads them to resolve identities and display names.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Name      – display name used in listings and notifications.
//  Email     – unique email address, notification target.
//  Role      – student, faculty or admin.
//  Section   – class section for students (empty for staff).
//  IsActive  – whether the account may authenticate.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type User struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Section   string    `json:"section,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is the resolved caller of a request.
type Identity struct {
	ID      uint64 `json:"id"`
	Role    Role   `json:"role"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Section string `json:"section,omitempty"`
}

// IsAdmin reports whether the identity carries administrator authority.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IdentityOf projects a user record onto the identity carried by requests.
func IdentityOf(u User) Identity {
	return Identity{ID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email, Section: u.Section}
}

package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User mirrors a row of the `users` table. Email is stored normalized
// (trimmed, lower-cased) and is unique.
type User struct {
	ID           string     // users.id (UUID)
	Email        string     // users.email
	Name         string     // users.name, optional display name
	PasswordHash string     // users.password_hash (argon2id PHC or legacy bcrypt)
	Role         Role       // users.role
	Status       Status     // users.status
	CreatedAt    time.Time  // users.created_at
	LastActive   *time.Time // users.last_active (nullable)
}

// IsActive reports whether the account may log in.
func (u User) IsActive() bool { return u.Status == StatusActive }

// Public strips the credential fields from u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		Status:     u.Status,
		CreatedAt:  u.CreatedAt,
		LastActive: u.LastActive,
	}
}

// PublicUser is the user view returned to clients. It never carries the
// password hash.
type PublicUser struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	Role       Role       `json:"role"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastActive *time.Time `json:"lastActive,omitempty"`
}

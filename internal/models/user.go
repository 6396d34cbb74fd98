package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// LastLogin records the most recent successful sign-in.
type LastLogin struct {
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ipAddress"`
	Device    string    `json:"device"`
}

// LoginEvent is one entry of a user's append-only login history.
type LoginEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	IPAddress  string    `json:"ipAddress"`
	Device     string    `json:"device"`
	Successful bool      `json:"successful"`
}

// User represents a user in the system. PasswordHash, TwoFactorSecret and
// BackupCodes are only populated when the store is asked for security
// fields.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	TwoFactorSecret  string     `json:"-"`
	BackupCodes      []string   `json:"-"`
	Role             string     `json:"role"`
	LastLogin        *LastLogin `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewUser creates a new unverified user with a generated UUID
func NewUser(name, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PublicUser is the client-safe projection returned by auth endpoints.
type PublicUser struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLogin        *LastLogin `json:"lastLogin,omitempty"`
}

// Public returns the client-safe projection without login details.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		IsEmailVerified:  u.IsEmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// Profile is Public plus the last successful login.
func (u *User) Profile() PublicUser {
	p := u.Public()
	p.LastLogin = u.LastLogin
	return p
}

// Identity is the request-scoped principal attached by the route guard.
type Identity struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	IsEmailVerified  bool      `json:"isEmailVerified"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
}

// Identity projects the user onto the request principal.
func (u *User) Identity() Identity {
	return Identity{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		IsEmailVerified:  u.IsEmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

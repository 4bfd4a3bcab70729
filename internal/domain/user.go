package domain

import (
	"time"
)

// User is the identity aggregate shared by all branded sites. Every field
// that can be absent is a pointer; the linking engine guarantees that at
// least one credential (email+password, phone, or an external login)
// remains set at all times.
type User struct {
	ID           int64
	Email        *string // lowercased, unique
	PasswordHash *string
	PhoneNumber  *string // E.164, unique

	IsEmailVerified bool
	IsPhoneVerified bool

	FirstName *string
	LastName  *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// HasEmailCredential reports whether the email counts as a standalone login
// method: it must be present, verified, and backed by a password.
func (u *User) HasEmailCredential() bool {
	return u.Email != nil && u.PasswordHash != nil && u.IsEmailVerified
}

// ExternalLogin binds one third-party identity to a user. (provider,
// provider_user_id) is globally unique; (user_id, provider) is unique.
type ExternalLogin struct {
	ID             int64
	UserID         int64
	Provider       string // normalized lowercase
	ProviderUserID string
	ProviderEmail  *string
	DisplayName    *string
	CreatedAt      time.Time
	LastUsedAt     time.Time
}

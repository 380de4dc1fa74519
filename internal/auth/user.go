// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Field constraints enforced by Register and ResetPassword.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var (
	// usernameRegex allows letters, digits, underscores, dots and hyphens.
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

	// emailRegex matches local@domain.tld with no whitespace.
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// User is an account row as held by the credential store.
type User struct {
	ID                    int64
	Username              string
	Email                 string
	PasswordHash          string
	EmailVerified         bool
	VerificationTokenHash *string
	ResetTokenHash        *string
	ResetExpiresAt        *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PublicUser holds the user fields that may be returned to clients.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public strips credentials and token state from the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

// HasPendingReset reports whether a reset token is stored and unexpired at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetExpiresAt != nil && now.Before(*u.ResetExpiresAt)
}

// RegisterInput is the payload accepted by Service.Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// normalize trims surrounding whitespace from identifiers. Passwords are left untouched.
func (in RegisterInput) normalize() RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

// ValidateRegistration checks a registration payload. The first violation wins,
// in the order: presence, username, email, password.
func ValidateRegistration(in RegisterInput) error {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return validationError("all", "username, email and password are required")
	}
	if err := ValidateUsername(in.Username); err != nil {
		return err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	return ValidatePassword(in.Password)
}

// ValidateUsername validates a username against length and charset rules.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return validationError("username", "username must be at least %d characters long", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return validationError("username", "username must be at most %d characters long", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return validationError("username", "username may contain only letters, numbers, underscores, dots and hyphens")
	}
	return nil
}

// ValidateEmail checks that email looks like local@domain.tld.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return validationError("email", "please provide a valid email address")
	}
	return nil
}

// ValidatePassword enforces the password length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return validationError("password", "password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return validationError("password", "password must be at most %d characters long", MaxPasswordLength)
	}
	return nil
}

// UserRepository persists users. Consume* methods are single conditional
// updates; they return ErrNotFound when no row matched.
type UserRepository interface {
	// Create inserts the user and fills in ID, CreatedAt and UpdatedAt.
	// Returns ErrConflict if the username or email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByEmailOrUsername retrieves any user holding either identifier.
	GetByEmailOrUsername(ctx context.Context, email, username string) (*User, error)

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// SetVerificationToken stores a new verification digest for an unverified user.
	// Returns ErrNotFound if the user does not exist or is already verified.
	SetVerificationToken(ctx context.Context, id int64, tokenHash string) error

	// ConsumeVerificationToken marks the matching user verified and clears the
	// digest in one statement, returning the user ID.
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (int64, error)

	// SetResetToken stores a reset digest and its expiry, replacing any prior one.
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error

	// GetByResetToken retrieves the user whose reset digest matches and has not expired at now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// ConsumeResetToken sets the new password hash and clears both reset fields,
	// provided the digest still matches and has not expired at now.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error)

	// ClearExpiredResetTokens nulls reset fields that expired before now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

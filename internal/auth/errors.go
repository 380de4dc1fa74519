// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a username or email is already taken.
var ErrConflict = errors.New("already exists")

// Error codes callers may branch on. Anything else is an internal failure.
const (
	CodeValidation               = "AUTH_VALIDATION"
	CodeUserExists               = "AUTH_USER_EXISTS"
	CodeInvalidCredentials       = "AUTH_INVALID_CREDENTIALS"
	CodeEmailNotVerified         = "AUTH_EMAIL_NOT_VERIFIED"
	CodeTokenInvalid             = "AUTH_TOKEN_INVALID"
	CodeResetTokenInvalid        = "AUTH_RESET_TOKEN_INVALID"
	CodeVerificationTokenInvalid = "AUTH_VERIFICATION_TOKEN_INVALID"
	CodeNotFoundOrVerified       = "AUTH_NOT_FOUND_OR_VERIFIED"
)

// User-facing messages. Wording is shared across paths that must not be
// distinguishable.
const (
	msgInvalidCredentials       = "invalid email or password"
	msgEmailNotVerified         = "please verify your email address before logging in"
	msgUserExists               = "an account with that username or email already exists"
	msgTokenInvalid             = "invalid or expired token"
	msgResetTokenInvalid        = "invalid or expired reset token"
	msgVerificationTokenInvalid = "invalid or expired verification token"
	msgNotFoundOrVerified       = "no pending verification for that email"
)

func validationError(field, format string, args ...any) error {
	return oops.Code(CodeValidation).With("field", field).Errorf(format, args...)
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(msgInvalidCredentials)
}

func errUserExists() error {
	return oops.Code(CodeUserExists).Errorf(msgUserExists)
}

func errResetTokenInvalid() error {
	return oops.Code(CodeResetTokenInvalid).Errorf(msgResetTokenInvalid)
}

func errVerificationTokenInvalid() error {
	return oops.Code(CodeVerificationTokenInvalid).Errorf(msgVerificationTokenInvalid)
}

func errNotFoundOrVerified() error {
	return oops.Code(CodeNotFoundOrVerified).Errorf(msgNotFoundOrVerified)
}

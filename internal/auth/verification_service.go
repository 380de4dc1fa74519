// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

// VerifyEmail marks the account holding token as verified. The token is
// consumed in the same statement, so a second call with it fails. With
// verification disabled no token is valid.
func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	defer func() { s.record("verify_email", err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("token", "verification token is required")
	}
	if !s.cfg.EmailVerification {
		return errVerificationTokenInvalid()
	}

	userID, err := s.users.ConsumeVerificationToken(ctx, HashOpaqueToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errVerificationTokenInvalid()
		}
		return oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "consume verification token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified", "user_id", userID)
	return nil
}

// ResendVerification replaces the pending verification token for email and
// sends a new link. Unknown and already-verified addresses share one error,
// which is also returned for every address when verification is disabled.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	defer func() { s.record("resend_verification", err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return validationError("email", "email is required")
	}
	if !s.cfg.EmailVerification {
		return errNotFoundOrVerified()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNotFoundOrVerified()
		}
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	if user.EmailVerified {
		return errNotFoundOrVerified()
	}

	token, digest, err := GenerateOpaqueToken()
	if err != nil {
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}

	if err := s.users.SetVerificationToken(ctx, user.ID, digest); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Verified between the read and the write.
			return errNotFoundOrVerified()
		}
		return oops.Code("AUTH_RESEND_FAILED").
			With("operation", "set verification token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return s.dispatch(ctx, NotifyEmailVerification, user, s.cfg.VerifyURL, token, time.Time{})
}

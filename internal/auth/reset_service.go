// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/observability"
)

// ForgotPassword issues a reset link for email if an account exists. Apart
// from a missing email, it always succeeds: store and dispatch failures are
// logged and counted but never surfaced, so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.record("forgot_password", err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return validationError("email", "email is required")
	}

	if issueErr := s.issueReset(ctx, email); issueErr != nil {
		s.logger.WarnContext(ctx, "password reset request failed",
			"operation", "forgot_password",
			"error", issueErr)
	}
	return nil
}

func (s *Service) issueReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, digest, err := GenerateOpaqueToken()
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	expiresAt := s.cfg.Now().Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "set reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return s.dispatch(ctx, NotifyPasswordReset, user, s.cfg.ResetURL, token, expiresAt)
}

// ResetPassword redeems a reset token and sets a new password. The token is
// looked up before hashing so garbage tokens cost no hash work; the final
// write re-checks digest and expiry so a token can be redeemed only once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.record("reset_password", err) }()

	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return validationError("all", "token and new password are required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	digest := HashOpaqueToken(token)
	now := s.cfg.Now()

	if _, err := s.users.GetByResetToken(ctx, digest, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errResetTokenInvalid()
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	userID, err := s.users.ConsumeResetToken(ctx, digest, hash, s.cfg.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errResetTokenInvalid()
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID)
	return nil
}

// PurgeExpiredResets clears reset tokens whose expiry has passed.
func (s *Service) PurgeExpiredResets(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredResetTokens(ctx, s.cfg.Now())
	if err != nil {
		return 0, oops.Code("AUTH_RESET_PURGE_FAILED").
			With("operation", "clear expired reset tokens").
			Wrap(err)
	}
	observability.RecordResetTokensPurged(n)
	return n, nil
}

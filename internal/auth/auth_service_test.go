// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/auth/mocks"
	"github.com/taskhub/taskhub/pkg/errutil"
)

type serviceDeps struct {
	users    *mocks.MockUserRepository
	hasher   *mocks.MockPasswordHasher
	tokens   *mocks.MockTokenIssuer
	notifier *mocks.MockNotifier
}

func newTestService(t *testing.T, cfg auth.Config) (*auth.Service, serviceDeps) {
	t.Helper()
	deps := serviceDeps{
		users:    mocks.NewMockUserRepository(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		tokens:   mocks.NewMockTokenIssuer(t),
		notifier: mocks.NewMockNotifier(t),
	}
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = "http://localhost:3000/verify-email"
	}
	if cfg.ResetURL == "" {
		cfg.ResetURL = "http://localhost:3000/reset-password"
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := auth.NewServiceWithLogger(deps.users, deps.hasher, deps.tokens, deps.notifier, cfg, logger)
	require.NoError(t, err)
	return svc, deps
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestNewService_NilDependencies(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	tokens := mocks.NewMockTokenIssuer(t)
	notifier := mocks.NewMockNotifier(t)

	tests := []struct {
		name        string
		users       auth.UserRepository
		hasher      auth.PasswordHasher
		tokens      auth.TokenIssuer
		notifier    auth.Notifier
		expectError string
	}{
		{"nil user repository", nil, hasher, tokens, notifier, "user repository is required"},
		{"nil password hasher", users, nil, tokens, notifier, "password hasher is required"},
		{"nil token issuer", users, hasher, nil, notifier, "token issuer is required"},
		{"nil notifier", users, hasher, tokens, nil, "notifier is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.hasher, tt.tokens, tt.notifier, auth.Config{})
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	svc, err := auth.NewServiceWithLogger(
		mocks.NewMockUserRepository(t),
		mocks.NewMockPasswordHasher(t),
		mocks.NewMockTokenIssuer(t),
		mocks.NewMockNotifier(t),
		auth.Config{},
		nil,
	)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	input := auth.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password123"}

	t.Run("validation error skips the store", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		_, err := svc.Register(ctx, auth.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "short"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	})

	t.Run("existing user is a conflict", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmailOrUsername(mock.Anything, "alice@example.com", "alice").
			Return(&auth.User{ID: 1}, nil)

		_, err := svc.Register(ctx, input)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeUserExists)
	})

	t.Run("insert race is a conflict", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmailOrUsername(mock.Anything, "alice@example.com", "alice").
			Return(nil, auth.ErrNotFound)
		deps.hasher.EXPECT().Hash(mock.Anything, "password123").Return("$argon2id$hash", nil)
		deps.users.EXPECT().Create(mock.Anything, mock.Anything).Return(auth.ErrConflict)

		_, err := svc.Register(ctx, input)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeUserExists)
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmailOrUsername(mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset"))

		_, err := svc.Register(ctx, input)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
	})

	t.Run("without verification the account is created verified", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmailOrUsername(mock.Anything, mock.Anything, mock.Anything).
			Return(nil, auth.ErrNotFound)
		deps.hasher.EXPECT().Hash(mock.Anything, "password123").Return("$argon2id$hash", nil)
		deps.users.EXPECT().Create(mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.PasswordHash == "$argon2id$hash" && u.VerificationTokenHash == nil && u.EmailVerified
		})).Run(func(_ context.Context, u *auth.User) { u.ID = 9 }).Return(nil)

		result, err := svc.Register(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, auth.PublicUser{ID: 9, Username: "alice", Email: "alice@example.com"}, result.User)
		assert.Equal(t, auth.MsgRegistered, result.Message)
	})

	t.Run("sends verification link matching stored digest", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{EmailVerification: true})
		var stored string
		deps.users.EXPECT().GetByEmailOrUsername(mock.Anything, mock.Anything, mock.Anything).
			Return(nil, auth.ErrNotFound)
		deps.hasher.EXPECT().Hash(mock.Anything, "password123").Return("$argon2id$hash", nil)
		deps.users.EXPECT().Create(mock.Anything, mock.Anything).
			Run(func(_ context.Context, u *auth.User) {
				require.NotNil(t, u.VerificationTokenHash)
				stored = *u.VerificationTokenHash
				u.ID = 3
			}).Return(nil)
		deps.notifier.EXPECT().Notify(mock.Anything, mock.Anything).
			Run(func(_ context.Context, n auth.Notification) {
				assert.Equal(t, auth.NotifyEmailVerification, n.Kind)
				assert.Equal(t, "alice@example.com", n.To)
				assert.Equal(t, auth.HashOpaqueToken(tokenFromLink(t, n.Link)), stored)
			}).Return(nil)

		result, err := svc.Register(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, auth.MsgRegisteredCheckEmail, result.Message)
	})

	t.Run("dispatch failure keeps the account and logs", func(t *testing.T) {
		var logs bytes.Buffer
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		notifier := mocks.NewMockNotifier(t)
		svc, err := auth.NewServiceWithLogger(users, hasher, mocks.NewMockTokenIssuer(t), notifier,
			auth.Config{EmailVerification: true, VerifyURL: "http://localhost/verify"},
			slog.New(slog.NewJSONHandler(&logs, nil)))
		require.NoError(t, err)

		users.EXPECT().GetByEmailOrUsername(mock.Anything, mock.Anything, mock.Anything).Return(nil, auth.ErrNotFound)
		hasher.EXPECT().Hash(mock.Anything, mock.Anything).Return("$argon2id$hash", nil)
		users.EXPECT().Create(mock.Anything, mock.Anything).Return(nil)
		notifier.EXPECT().Notify(mock.Anything, mock.Anything).Return(errors.New("smtp unavailable"))

		result, err := svc.Register(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, auth.MsgRegisteredDispatchFailed, result.Message)
		assert.Contains(t, logs.String(), "verification email dispatch failed")
		assert.Contains(t, logs.String(), `"operation":"register"`)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{ID: 5, Username: "alice", Email: "alice@example.com", PasswordHash: "$argon2id$real"}
	expiry := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)

	t.Run("missing fields", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		_, err := svc.Login(ctx, "", "password123")
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
		_, err = svc.Login(ctx, "alice@example.com", "")
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	})

	t.Run("success mints token", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(user, nil)
		deps.hasher.EXPECT().Verify(mock.Anything, "password123", "$argon2id$real").Return(true, nil)
		deps.hasher.EXPECT().NeedsUpgrade("$argon2id$real").Return(false)
		deps.tokens.EXPECT().Issue(user).Return("signed.jwt.token", expiry, nil)

		result, err := svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "signed.jwt.token", result.Token)
		assert.Equal(t, expiry, result.ExpiresAt)
		assert.Equal(t, user.Public(), result.User)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmail(mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)
		// The dummy hash is still verified on the miss path.
		deps.hasher.EXPECT().Verify(mock.Anything, "password123", mock.MatchedBy(func(h string) bool {
			return h != "" && h != user.PasswordHash
		})).Return(false, nil)
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(user, nil)
		deps.hasher.EXPECT().Verify(mock.Anything, "wrong-password", "$argon2id$real").Return(false, nil)

		_, missErr := svc.Login(ctx, "ghost@example.com", "password123")
		_, wrongErr := svc.Login(ctx, "alice@example.com", "wrong-password")

		require.Error(t, missErr)
		require.Error(t, wrongErr)
		errutil.AssertErrorCode(t, missErr, auth.CodeInvalidCredentials)
		errutil.AssertErrorCode(t, wrongErr, auth.CodeInvalidCredentials)
		assert.Equal(t, missErr.Error(), wrongErr.Error())
	})

	t.Run("unverified account rejected when required", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{RequireVerification: true})
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(user, nil)
		deps.hasher.EXPECT().Verify(mock.Anything, "password123", "$argon2id$real").Return(true, nil)

		_, err := svc.Login(ctx, "alice@example.com", "password123")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeEmailNotVerified)
	})

	t.Run("unverified account with wrong password is still invalid credentials", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{RequireVerification: true})
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(user, nil)
		deps.hasher.EXPECT().Verify(mock.Anything, "nope-nope", "$argon2id$real").Return(false, nil)

		_, err := svc.Login(ctx, "alice@example.com", "nope-nope")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("legacy hash is upgraded", func(t *testing.T) {
		legacy := &auth.User{ID: 6, Username: "old", Email: "old@example.com", PasswordHash: "$2a$10$legacy"}
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmail(mock.Anything, "old@example.com").Return(legacy, nil)
		deps.hasher.EXPECT().Verify(mock.Anything, "password123", "$2a$10$legacy").Return(true, nil)
		deps.hasher.EXPECT().NeedsUpgrade("$2a$10$legacy").Return(true)
		deps.hasher.EXPECT().Hash(mock.Anything, "password123").Return("$argon2id$new", nil)
		deps.users.EXPECT().UpdatePassword(mock.Anything, int64(6), "$argon2id$new").Return(nil)
		deps.tokens.EXPECT().Issue(legacy).Return("tok", expiry, nil)

		_, err := svc.Login(ctx, "old@example.com", "password123")
		require.NoError(t, err)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmail(mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		_, err := svc.Login(ctx, "alice@example.com", "password123")
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})
}

func TestService_ForgotPassword(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	user := &auth.User{ID: 5, Username: "alice", Email: "alice@example.com"}

	t.Run("email required", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		err := svc.ForgotPassword(ctx, "  ")
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmail(mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)

		assert.NoError(t, svc.ForgotPassword(ctx, "ghost@example.com"))
	})

	t.Run("store failure is not revealed", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(nil, errors.New("db down"))

		assert.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	})

	t.Run("dispatch failure is not revealed", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{Now: func() time.Time { return now }})
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(user, nil)
		deps.users.EXPECT().SetResetToken(mock.Anything, int64(5), mock.Anything, now.Add(time.Hour)).Return(nil)
		deps.notifier.EXPECT().Notify(mock.Anything, mock.Anything).Return(errors.New("broker down"))

		assert.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	})

	t.Run("stores digest with ttl and sends link", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{Now: func() time.Time { return now }, ResetTokenTTL: 30 * time.Minute})
		var digest string
		deps.users.EXPECT().GetByEmail(mock.Anything, "alice@example.com").Return(user, nil)
		deps.users.EXPECT().SetResetToken(mock.Anything, int64(5), mock.Anything, now.Add(30*time.Minute)).
			Run(func(_ context.Context, _ int64, h string, _ time.Time) { digest = h }).
			Return(nil)
		deps.notifier.EXPECT().Notify(mock.Anything, mock.Anything).
			Run(func(_ context.Context, n auth.Notification) {
				assert.Equal(t, auth.NotifyPasswordReset, n.Kind)
				assert.Equal(t, now.Add(30*time.Minute), n.ExpiresAt)
				token := tokenFromLink(t, n.Link)
				assert.Len(t, token, 64)
				assert.Equal(t, digest, auth.HashOpaqueToken(token))
			}).Return(nil)

		assert.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	})
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	digest := auth.HashOpaqueToken("plain-token")

	t.Run("short password rejected before lookup", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		err := svc.ResetPassword(ctx, "plain-token", "short")
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		err := svc.ResetPassword(ctx, "", "password123")
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	})

	t.Run("unknown token skips hashing", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByResetToken(mock.Anything, digest, mock.Anything).Return(nil, auth.ErrNotFound)

		err := svc.ResetPassword(ctx, "plain-token", "password123")
		errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)
	})

	t.Run("token consumed concurrently", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByResetToken(mock.Anything, digest, mock.Anything).Return(&auth.User{ID: 1}, nil)
		deps.hasher.EXPECT().Hash(mock.Anything, "password123").Return("$argon2id$new", nil)
		deps.users.EXPECT().ConsumeResetToken(mock.Anything, digest, "$argon2id$new", mock.Anything).
			Return(int64(0), auth.ErrNotFound)

		err := svc.ResetPassword(ctx, "plain-token", "password123")
		errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)
	})

	t.Run("success", func(t *testing.T) {
		svc, deps := newTestService(t, auth.Config{})
		deps.users.EXPECT().GetByResetToken(mock.Anything, digest, mock.Anything).Return(&auth.User{ID: 1}, nil)
		deps.hasher.EXPECT().Hash(mock.Anything, "password123").Return("$argon2id$new", nil)
		deps.users.EXPECT().ConsumeResetToken(mock.Anything, digest, "$argon2id$new", mock.Anything).
			Return(int64(1), nil)

		assert.NoError(t, svc.ResetPassword(ctx, "plain-token", "password123"))
	})
}

func TestService_VerifyEmail(t *testing.T) {
	ctx := context.Background()
	digest := auth.HashOpaqueToken("verify-token")
	enabled := auth.Config{EmailVerification: true}

	t.Run("disabled rejects every token without a lookup", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		errutil.AssertErrorCode(t, svc.VerifyEmail(ctx, "verify-token"), auth.CodeVerificationTokenInvalid)
	})

	t.Run("empty token", func(t *testing.T) {
		svc, _ := newTestService(t, enabled)
		errutil.AssertErrorCode(t, svc.VerifyEmail(ctx, ""), auth.CodeValidation)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, deps := newTestService(t, enabled)
		deps.users.EXPECT().ConsumeVerificationToken(mock.Anything, digest).Return(int64(0), auth.ErrNotFound)
		errutil.AssertErrorCode(t, svc.VerifyEmail(ctx, "verify-token"), auth.CodeVerificationTokenInvalid)
	})

	t.Run("success", func(t *testing.T) {
		svc, deps := newTestService(t, enabled)
		deps.users.EXPECT().ConsumeVerificationToken(mock.Anything, digest).Return(int64(4), nil)
		assert.NoError(t, svc.VerifyEmail(ctx, "verify-token"))
	})
}

func TestService_ResendVerification(t *testing.T) {
	ctx := context.Background()
	enabled := auth.Config{EmailVerification: true}

	t.Run("disabled answers as verified without a lookup", func(t *testing.T) {
		svc, _ := newTestService(t, auth.Config{})
		errutil.AssertErrorCode(t, svc.ResendVerification(ctx, "new@example.com"), auth.CodeNotFoundOrVerified)
	})

	t.Run("unknown and verified share one error", func(t *testing.T) {
		svc, deps := newTestService(t, enabled)
		deps.users.EXPECT().GetByEmail(mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)
		deps.users.EXPECT().GetByEmail(mock.Anything, "done@example.com").
			Return(&auth.User{ID: 2, Email: "done@example.com", EmailVerified: true}, nil)

		missing := svc.ResendVerification(ctx, "ghost@example.com")
		verified := svc.ResendVerification(ctx, "done@example.com")
		errutil.AssertErrorCode(t, missing, auth.CodeNotFoundOrVerified)
		errutil.AssertErrorCode(t, verified, auth.CodeNotFoundOrVerified)
		assert.Equal(t, missing.Error(), verified.Error())
	})

	t.Run("replaces token and dispatches", func(t *testing.T) {
		svc, deps := newTestService(t, enabled)
		var digest string
		deps.users.EXPECT().GetByEmail(mock.Anything, "new@example.com").
			Return(&auth.User{ID: 3, Username: "newbie", Email: "new@example.com"}, nil)
		deps.users.EXPECT().SetVerificationToken(mock.Anything, int64(3), mock.Anything).
			Run(func(_ context.Context, _ int64, h string) { digest = h }).Return(nil)
		deps.notifier.EXPECT().Notify(mock.Anything, mock.Anything).
			Run(func(_ context.Context, n auth.Notification) {
				assert.Equal(t, digest, auth.HashOpaqueToken(tokenFromLink(t, n.Link)))
			}).Return(nil)

		assert.NoError(t, svc.ResendVerification(ctx, "new@example.com"))
	})

	t.Run("dispatch failure is reported", func(t *testing.T) {
		svc, deps := newTestService(t, enabled)
		deps.users.EXPECT().GetByEmail(mock.Anything, "new@example.com").
			Return(&auth.User{ID: 3, Email: "new@example.com"}, nil)
		deps.users.EXPECT().SetVerificationToken(mock.Anything, int64(3), mock.Anything).Return(nil)
		deps.notifier.EXPECT().Notify(mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		err := svc.ResendVerification(ctx, "new@example.com")
		errutil.AssertErrorCode(t, err, "AUTH_NOTIFY_FAILED")
	})
}

func TestService_PurgeExpiredResets(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, deps := newTestService(t, auth.Config{Now: func() time.Time { return now }})
	deps.users.EXPECT().ClearExpiredResetTokens(mock.Anything, now).Return(int64(2), nil)

	n, err := svc.PurgeExpiredResets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

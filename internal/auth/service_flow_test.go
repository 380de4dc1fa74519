// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/auth/authtest"
	"github.com/taskhub/taskhub/pkg/errutil"
)

type flowEnv struct {
	svc    *auth.Service
	store  *authtest.UserStore
	outbox *authtest.Outbox
	issuer *auth.SessionIssuer
	clock  *fakeClock
}

func newFlowEnv(t *testing.T, cfg auth.Config) *flowEnv {
	t.Helper()
	clock := newClock()
	store := authtest.NewUserStore()
	outbox := &authtest.Outbox{}
	issuer, err := auth.NewSessionIssuer(testSecret, 2*time.Hour, auth.WithClock(clock.Now))
	require.NoError(t, err)

	cfg.Now = clock.Now
	cfg.VerifyURL = "http://localhost:3000/verify-email"
	cfg.ResetURL = "http://localhost:3000/reset-password"
	svc, err := auth.NewServiceWithLogger(store, auth.NewArgon2idHasher(), issuer, outbox, cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return &flowEnv{svc: svc, store: store, outbox: outbox, issuer: issuer, clock: clock}
}

func (e *flowEnv) register(t *testing.T, username, email, password string) auth.PublicUser {
	t.Helper()
	result, err := e.svc.Register(context.Background(), auth.RegisterInput{Username: username, Email: email, Password: password})
	require.NoError(t, err)
	return result.User
}

func TestFlow_RegisterStoresHashThatVerifies(t *testing.T) {
	env := newFlowEnv(t, auth.Config{})
	user := env.register(t, "alice", "alice@example.com", "password123")

	stored, ok := env.store.Snapshot(user.ID)
	require.True(t, ok)
	assert.NotEqual(t, "password123", stored.PasswordHash)

	valid, err := auth.NewArgon2idHasher().Verify(context.Background(), "password123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestFlow_Collisions(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, auth.Config{})
	env.register(t, "alice", "alice@example.com", "password123")

	_, err := env.svc.Register(ctx, auth.RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "password123"})
	errutil.AssertErrorCode(t, err, auth.CodeUserExists)

	_, err = env.svc.Register(ctx, auth.RegisterInput{Username: "Alice", Email: "other@example.com", Password: "password123"})
	errutil.AssertErrorCode(t, err, auth.CodeUserExists)

	assert.Equal(t, 1, env.store.Len())
}

func TestFlow_LoginTokenLifetime(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, auth.Config{})
	user := env.register(t, "alice", "alice@example.com", "password123")

	result, err := env.svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	id, err := env.issuer.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)

	env.clock.Advance(2 * time.Hour)
	_, err = env.issuer.Verify(result.Token)
	errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
}

func TestFlow_EmailVerification(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, auth.Config{EmailVerification: true, RequireVerification: true})
	user := env.register(t, "alice", "alice@example.com", "password123")

	_, err := env.svc.Login(ctx, "alice@example.com", "password123")
	errutil.AssertErrorCode(t, err, auth.CodeEmailNotVerified)

	token := env.outbox.LastToken(auth.NotifyEmailVerification)
	require.NotEmpty(t, token)

	require.NoError(t, env.svc.VerifyEmail(ctx, token))
	stored, _ := env.store.Snapshot(user.ID)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationTokenHash)

	// Single use.
	errutil.AssertErrorCode(t, env.svc.VerifyEmail(ctx, token), auth.CodeVerificationTokenInvalid)

	_, err = env.svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	errutil.AssertErrorCode(t, env.svc.ResendVerification(ctx, "alice@example.com"), auth.CodeNotFoundOrVerified)
}

func TestFlow_ResendInvalidatesPreviousToken(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, auth.Config{EmailVerification: true})
	env.register(t, "alice", "alice@example.com", "password123")
	first := env.outbox.LastToken(auth.NotifyEmailVerification)

	require.NoError(t, env.svc.ResendVerification(ctx, "alice@example.com"))
	second := env.outbox.LastToken(auth.NotifyEmailVerification)
	require.NotEqual(t, first, second)

	errutil.AssertErrorCode(t, env.svc.VerifyEmail(ctx, first), auth.CodeVerificationTokenInvalid)
	require.NoError(t, env.svc.VerifyEmail(ctx, second))
}

func TestFlow_VerificationDisabled(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, auth.Config{})
	user := env.register(t, "alice", "alice@example.com", "password123")

	stored, ok := env.store.Snapshot(user.ID)
	require.True(t, ok)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationTokenHash)

	errutil.AssertErrorCode(t, env.svc.ResendVerification(ctx, "alice@example.com"), auth.CodeNotFoundOrVerified)
	errutil.AssertErrorCode(t, env.svc.VerifyEmail(ctx, "anything"), auth.CodeVerificationTokenInvalid)
	assert.Empty(t, env.outbox.Sent())

	// Accounts created while verification was off are not locked out later.
	strict, err := auth.NewServiceWithLogger(env.store, auth.NewArgon2idHasher(), env.issuer, env.outbox,
		auth.Config{EmailVerification: true, RequireVerification: true, Now: env.clock.Now},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	_, err = strict.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
}

func TestFlow_PasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("single use", func(t *testing.T) {
		env := newFlowEnv(t, auth.Config{})
		env.register(t, "alice", "alice@example.com", "password123")

		require.NoError(t, env.svc.ForgotPassword(ctx, "alice@example.com"))
		token := env.outbox.LastToken(auth.NotifyPasswordReset)
		require.NotEmpty(t, token)

		require.NoError(t, env.svc.ResetPassword(ctx, token, "new-password-1"))
		errutil.AssertErrorCode(t, env.svc.ResetPassword(ctx, token, "new-password-2"), auth.CodeResetTokenInvalid)

		_, err := env.svc.Login(ctx, "alice@example.com", "password123")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		_, err = env.svc.Login(ctx, "alice@example.com", "new-password-1")
		require.NoError(t, err)
	})

	t.Run("rejected after 61 minutes", func(t *testing.T) {
		env := newFlowEnv(t, auth.Config{})
		env.register(t, "bob", "bob@example.com", "password123")

		require.NoError(t, env.svc.ForgotPassword(ctx, "bob@example.com"))
		token := env.outbox.LastToken(auth.NotifyPasswordReset)

		env.clock.Advance(61 * time.Minute)
		errutil.AssertErrorCode(t, env.svc.ResetPassword(ctx, token, "new-password-1"), auth.CodeResetTokenInvalid)
	})

	t.Run("new request replaces old token", func(t *testing.T) {
		env := newFlowEnv(t, auth.Config{})
		env.register(t, "carol", "carol@example.com", "password123")

		require.NoError(t, env.svc.ForgotPassword(ctx, "carol@example.com"))
		first := env.outbox.LastToken(auth.NotifyPasswordReset)
		require.NoError(t, env.svc.ForgotPassword(ctx, "carol@example.com"))
		second := env.outbox.LastToken(auth.NotifyPasswordReset)

		errutil.AssertErrorCode(t, env.svc.ResetPassword(ctx, first, "new-password-1"), auth.CodeResetTokenInvalid)
		require.NoError(t, env.svc.ResetPassword(ctx, second, "new-password-1"))
	})

	t.Run("unknown email sends nothing", func(t *testing.T) {
		env := newFlowEnv(t, auth.Config{})
		require.NoError(t, env.svc.ForgotPassword(ctx, "ghost@example.com"))
		assert.Empty(t, env.outbox.Sent())
	})

	t.Run("purge clears expired tokens", func(t *testing.T) {
		env := newFlowEnv(t, auth.Config{})
		user := env.register(t, "dave", "dave@example.com", "password123")
		require.NoError(t, env.svc.ForgotPassword(ctx, "dave@example.com"))

		n, err := env.svc.PurgeExpiredResets(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		env.clock.Advance(2 * time.Hour)
		n, err = env.svc.PurgeExpiredResets(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stored, _ := env.store.Snapshot(user.ID)
		assert.Nil(t, stored.ResetTokenHash)
		assert.Nil(t, stored.ResetExpiresAt)
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/pkg/errutil"
)

// DefaultResetTokenTTL is how long a password reset link stays valid.
const DefaultResetTokenTTL = time.Hour

// Response messages returned alongside successful auth operations.
const (
	MsgRegistered               = "User registered successfully"
	MsgRegisteredCheckEmail     = "User registered successfully. Please check your email to verify your account"
	MsgRegisteredDispatchFailed = "User registered successfully, but the verification email could not be sent. Please request a new one or contact support"
	MsgLoginSuccessful          = "Login Successful"
	MsgEmailVerified            = "Email verified successfully"
	MsgVerificationResent       = "Verification email sent"
	MsgPasswordReset            = "Password has been reset successfully"

	// ForgotPasswordMessage is returned for every well-formed forgot-password
	// request, whether or not the account exists.
	ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent"
)

// Config holds the tunable behaviour of Service.
type Config struct {
	// EmailVerification issues and sends a verification token on register.
	EmailVerification bool
	// RequireVerification rejects login for unverified accounts.
	RequireVerification bool
	// ResetTokenTTL bounds the lifetime of reset links. Zero selects DefaultResetTokenTTL.
	ResetTokenTTL time.Duration
	// VerifyURL and ResetURL are the client pages the emailed links point at.
	VerifyURL string
	ResetURL  string
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Service implements the credential lifecycle: registration, login, email
// verification and password reset.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
}

// RegisterResult is returned by a successful Register.
type RegisterResult struct {
	User    PublicUser
	Message string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}

// NewService creates a new Service using the default logger.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, notifier Notifier, cfg Config) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, notifier, cfg, slog.Default())
}

// NewServiceWithLogger creates a new Service that logs best-effort failures to logger.
func NewServiceWithLogger(
	users UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = DefaultResetTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Register creates an account. With email verification enabled, the
// verification digest is stored with the new row and the link is dispatched.
// Otherwise the account is created verified.
// A dispatch failure does not undo the registration; it changes the message.
func (s *Service) Register(ctx context.Context, in RegisterInput) (result *RegisterResult, err error) {
	defer func() { s.record("register", err) }()

	in = in.normalize()
	if err := ValidateRegistration(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmailOrUsername(ctx, in.Email, in.Username)
	switch {
	case err == nil && existing != nil:
		return nil, errUserExists()
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "lookup existing user").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := &User{
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  hash,
		EmailVerified: !s.cfg.EmailVerification,
	}

	var verifyToken string
	if s.cfg.EmailVerification {
		token, digest, genErr := GenerateOpaqueToken()
		if genErr != nil {
			return nil, oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "generate verification token").
				Wrap(genErr)
		}
		verifyToken = token
		user.VerificationTokenHash = &digest
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, errUserExists()
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	result = &RegisterResult{User: user.Public(), Message: MsgRegistered}
	if !s.cfg.EmailVerification {
		return result, nil
	}

	if dispatchErr := s.dispatch(ctx, NotifyEmailVerification, user, s.cfg.VerifyURL, verifyToken, time.Time{}); dispatchErr != nil {
		s.logger.WarnContext(ctx, "verification email dispatch failed",
			"operation", "register",
			"user_id", user.ID,
			"error", dispatchErr)
		result.Message = MsgRegisteredDispatchFailed
		return result, nil
	}
	result.Message = MsgRegisteredCheckEmail
	return result, nil
}

// Login authenticates by email and password and mints a session token.
// An unknown email and a wrong password produce the same error, and the
// unknown path still verifies against a dummy hash.
func (s *Service) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	defer func() { s.record("login", err) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, validationError("all", "email and password are required")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	targetHash := dummyHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(ctx, password, targetHash)
	if lookupErr != nil {
		return nil, errInvalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}
	if !valid {
		return nil, errInvalidCredentials()
	}

	if s.cfg.RequireVerification && !user.EmailVerified {
		return nil, oops.Code(CodeEmailNotVerified).
			With("user_id", user.ID).
			Errorf(msgEmailNotVerified)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

// upgradeHash re-hashes a legacy password. Failures are logged and ignored.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"operation", "hash",
			"user_id", user.ID,
			"error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"operation", "update_password",
			"user_id", user.ID,
			"error", err)
		return
	}
	user.PasswordHash = newHash
}

// dispatch builds the link for token and hands it to the notifier.
func (s *Service) dispatch(ctx context.Context, kind NotificationKind, user *User, base, token string, expiresAt time.Time) error {
	link, err := buildLink(base, token)
	if err != nil {
		return err
	}
	err = s.notifier.Notify(ctx, Notification{
		Kind:      kind,
		To:        user.Email,
		Username:  user.Username,
		Link:      link,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		observability.RecordNotificationFailure(string(kind))
		return oops.Code("AUTH_NOTIFY_FAILED").
			With("kind", string(kind)).
			With("user_id", user.ID).
			Wrap(err)
	}
	return nil
}

func (s *Service) record(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = errutil.Code(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	observability.RecordAuthOperation(operation, outcome)
}

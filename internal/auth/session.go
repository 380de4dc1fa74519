// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Session token defaults.
const (
	DefaultSessionTTL = 2 * time.Hour
	DefaultIssuer     = "taskhub"
	MinSecretLength   = 32
)

// Identity is the verified subject of a session token.
type Identity struct {
	UserID    int64
	Username  string
	Email     string
	ExpiresAt time.Time
}

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(user *User) (token string, expiresAt time.Time, err error)
}

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// SessionIssuer signs and verifies HS256 session tokens with a shared secret.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// SessionOption configures a SessionIssuer.
type SessionOption func(*SessionIssuer)

// WithIssuer sets the iss claim written and required on tokens.
func WithIssuer(issuer string) SessionOption {
	return func(s *SessionIssuer) { s.issuer = issuer }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) { s.now = now }
}

// NewSessionIssuer creates a SessionIssuer. The secret must be at least
// MinSecretLength bytes; a non-positive ttl selects DefaultSessionTTL.
func NewSessionIssuer(secret []byte, ttl time.Duration, opts ...SessionOption) (*SessionIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("CONFIG_INVALID").
			With("min_length", MinSecretLength).
			Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionIssuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for user that expires after the configured TTL.
func (s *SessionIssuer) Issue(user *User) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, oops.Errorf("user is required")
	}
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").With("user_id", user.ID).Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry. Any failure yields
// a CodeTokenInvalid error with a uniform message.
func (s *SessionIssuer) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, errTokenInvalid(nil)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, errTokenInvalid(err)
	}
	if !parsed.Valid || claims.ID <= 0 {
		return nil, errTokenInvalid(nil)
	}

	return &Identity{
		UserID:    claims.ID,
		Username:  claims.Username,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func errTokenInvalid(cause error) error {
	b := oops.Code(CodeTokenInvalid)
	if cause != nil {
		b = b.With("reason", cause.Error())
	}
	return b.Errorf(msgTokenInvalid)
}

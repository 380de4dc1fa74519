// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package authtest provides in-memory fakes of the auth package's
// dependencies for use in tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
)

// UserStore is an in-memory auth.UserRepository with the same matching rules
// as the Postgres implementation: identifiers compare case-insensitively and
// consume operations are conditional.
type UserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*auth.User
	now    func() time.Time
}

// NewUserStore creates an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int64]*auth.User), now: time.Now}
}

// Create implements auth.UserRepository.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username) {
			return oops.Code("USER_CREATE_FAILED").With("username", user.Username).Wrap(auth.ErrConflict)
		}
	}

	s.nextID++
	now := s.now()
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = clone(user)
	return nil
}

// GetByID implements auth.UserRepository.
func (s *UserStore) GetByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return clone(u), nil
	}
	return nil, notFound("id", id)
}

// GetByEmail implements auth.UserRepository.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, notFound("email", email)
}

// GetByEmailOrUsername implements auth.UserRepository.
func (s *UserStore) GetByEmailOrUsername(_ context.Context, email, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) || strings.EqualFold(u.Username, username) {
			return clone(u), nil
		}
	}
	return nil, notFound("email", email)
}

// UpdatePassword implements auth.UserRepository.
func (s *UserStore) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("id", id)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	return nil
}

// SetVerificationToken implements auth.UserRepository.
func (s *UserStore) SetVerificationToken(_ context.Context, id int64, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.EmailVerified {
		return notFound("id", id)
	}
	u.VerificationTokenHash = &tokenHash
	u.UpdatedAt = s.now()
	return nil
}

// ConsumeVerificationToken implements auth.UserRepository.
func (s *UserStore) ConsumeVerificationToken(_ context.Context, tokenHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationTokenHash != nil && *u.VerificationTokenHash == tokenHash && !u.EmailVerified {
			u.EmailVerified = true
			u.VerificationTokenHash = nil
			u.UpdatedAt = s.now()
			return u.ID, nil
		}
	}
	return 0, notFound("token", "verification")
}

// SetResetToken implements auth.UserRepository.
func (s *UserStore) SetResetToken(_ context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("id", id)
	}
	u.ResetTokenHash = &tokenHash
	u.ResetExpiresAt = &expiresAt
	u.UpdatedAt = s.now()
	return nil
}

// GetByResetToken implements auth.UserRepository.
func (s *UserStore) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.findReset(tokenHash, now); u != nil {
		return clone(u), nil
	}
	return nil, notFound("token", "reset")
}

// ConsumeResetToken implements auth.UserRepository.
func (s *UserStore) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findReset(tokenHash, now)
	if u == nil {
		return 0, notFound("token", "reset")
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetExpiresAt = nil
	u.UpdatedAt = s.now()
	return u.ID, nil
}

// ClearExpiredResetTokens implements auth.UserRepository.
func (s *UserStore) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.ResetExpiresAt != nil && !now.Before(*u.ResetExpiresAt) {
			u.ResetTokenHash = nil
			u.ResetExpiresAt = nil
			n++
		}
	}
	return n, nil
}

// Snapshot returns a copy of the stored user, for assertions.
func (s *UserStore) Snapshot(id int64) (*auth.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return clone(u), true
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *UserStore) findReset(tokenHash string, now time.Time) *auth.User {
	for _, u := range s.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now) {
			return u
		}
	}
	return nil
}

func clone(u *auth.User) *auth.User {
	c := *u
	if u.VerificationTokenHash != nil {
		v := *u.VerificationTokenHash
		c.VerificationTokenHash = &v
	}
	if u.ResetTokenHash != nil {
		v := *u.ResetTokenHash
		c.ResetTokenHash = &v
	}
	if u.ResetExpiresAt != nil {
		v := *u.ResetExpiresAt
		c.ResetExpiresAt = &v
	}
	return &c
}

func notFound(key string, value any) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

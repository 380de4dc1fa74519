// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/store"
)

const userColumns = `id, username, email, password_hash, email_verified,
       verification_token_hash, reset_token_hash, reset_expires_at,
       created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ auth.UserRepository = (*UserRepository)(nil)

// Create inserts a user, including any pending verification digest.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, email_verified, verification_token_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.EmailVerified,
		user.VerificationTokenHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return oops.Code("USER_CREATE_CONFLICT").
			With("username", user.Username).
			Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.get(row, "get user by id", "id", id)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return r.get(row, "get user by email", "email", email)
}

// GetByEmailOrUsername retrieves a user holding either identifier.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1) OR LOWER(username) = LOWER($2)
		LIMIT 1
	`, email, username)
	return r.get(row, "get user by email or username", "username", username)
}

// GetByResetToken retrieves the user whose reset digest matches and is unexpired at now.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash = $1 AND reset_expires_at > $2
	`, tokenHash, now)
	return r.get(row, "get user by reset token", "token", "reset")
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, id, passwordHash)
	return affected(tag, err, "update password", "id", id)
}

// SetVerificationToken stores a new verification digest for an unverified user.
func (r *UserRepository) SetVerificationToken(ctx context.Context, id int64, tokenHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET verification_token_hash = $2, updated_at = NOW()
		WHERE id = $1 AND NOT email_verified
	`, id, tokenHash)
	return affected(tag, err, "set verification token", "id", id)
}

// ConsumeVerificationToken verifies the matching account and clears the digest.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET email_verified = TRUE, verification_token_hash = NULL, updated_at = NOW()
		WHERE verification_token_hash = $1 AND NOT email_verified
		RETURNING id
	`, tokenHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("USER_NOT_FOUND").With("token", "verification").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("USER_UPDATE_FAILED").
			With("operation", "consume verification token").
			Wrap(err)
	}
	return id, nil
}

// SetResetToken stores a reset digest and expiry, replacing any prior one.
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, tokenHash, expiresAt)
	return affected(tag, err, "set reset token", "id", id)
}

// ConsumeResetToken sets the new password hash and clears the reset fields in
// one statement, guarded by digest and expiry.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = NOW()
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING id
	`, tokenHash, passwordHash, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("USER_NOT_FOUND").With("token", "reset").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("USER_UPDATE_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return id, nil
}

// ClearExpiredResetTokens nulls reset fields that expired at or before now.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET reset_token_hash = NULL, reset_expires_at = NULL
		WHERE reset_expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("USER_UPDATE_FAILED").
			With("operation", "clear expired reset tokens").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) get(row pgx.Row, operation, key string, value any) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", operation).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.EmailVerified,
		&u.VerificationTokenHash,
		&u.ResetTokenHash,
		&u.ResetExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func affected(tag pgconn.CommandTag, err error, operation, key string, value any) error {
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With(key, value).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

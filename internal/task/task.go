// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

// MaxTitleLength bounds task titles.
const MaxTitleLength = 255

// ErrNotFound is returned when a task does not exist or is owned by another user.
var ErrNotFound = errors.New("task not found")

// Error codes surfaced to callers.
const (
	CodeValidation = "TASK_VALIDATION"
	CodeNotFound   = "TASK_NOT_FOUND"
)

// Task is a single to-do item owned by a user.
type Task struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch carries the fields of an update. Nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// Repository persists tasks. All methods are scoped to userID.
type Repository interface {
	List(ctx context.Context, userID int64) ([]*Task, error)
	Get(ctx context.Context, userID, id int64) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, userID, id int64, patch Patch) (*Task, error)
	Delete(ctx context.Context, userID, id int64) error
}

// ValidateTitle checks a title after trimming surrounding whitespace.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return oops.Code(CodeValidation).With("field", "title").Errorf("title is required")
	}
	if len(title) > MaxTitleLength {
		return oops.Code(CodeValidation).
			With("field", "title").
			Errorf("title must be at most %d characters", MaxTitleLength)
	}
	return nil
}

func errNotFound(id int64) error {
	return oops.Code(CodeNotFound).With("task_id", id).Errorf("task not found")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package task

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
)

// Response messages for task mutations.
const (
	MsgCreated = "Task Created Successfully"
	MsgUpdated = "Task updated successfully"
	MsgDeleted = "Task deleted successfully"
)

// Service applies validation and ownership rules on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a new Service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("task repository is required")
	}
	return &Service{repo: repo}, nil
}

// List returns the user's tasks, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*Task, error) {
	tasks, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	if tasks == nil {
		tasks = []*Task{}
	}
	return tasks, nil
}

// Create adds a task for the user.
func (s *Service) Create(ctx context.Context, userID int64, title, description string) (*Task, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	t := &Task{
		UserID:      userID,
		Title:       strings.TrimSpace(title),
		Description: description,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, oops.Code("TASK_CREATE_FAILED").With("user_id", userID).Wrap(err)
	}
	return t, nil
}

// Update applies patch to one of the user's tasks. An empty patch returns the
// task unchanged.
func (s *Service) Update(ctx context.Context, userID, id int64, patch Patch) (*Task, error) {
	if patch.Title != nil {
		if err := ValidateTitle(*patch.Title); err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}

	var (
		t   *Task
		err error
	)
	if patch.Empty() {
		t, err = s.repo.Get(ctx, userID, id)
	} else {
		t, err = s.repo.Update(ctx, userID, id, patch)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("TASK_UPDATE_FAILED").
			With("user_id", userID).
			With("task_id", id).
			Wrap(err)
	}
	return t, nil
}

// Delete removes one of the user's tasks.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	err := s.repo.Delete(ctx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return errNotFound(id)
	}
	if err != nil {
		return oops.Code("TASK_DELETE_FAILED").
			With("user_id", userID).
			With("task_id", id).
			Wrap(err)
	}
	return nil
}

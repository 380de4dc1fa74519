// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package tasktest provides an in-memory task.Repository for tests.
package tasktest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/task"
)

// Store is an in-memory task.Repository with owner scoping identical to the
// Postgres implementation.
type Store struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*task.Task
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[int64]*task.Task), now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// List implements task.Repository.
func (s *Store) List(_ context.Context, userID int64) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*task.Task, 0)
	for _, t := range s.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get implements task.Repository.
func (s *Store) Get(_ context.Context, userID, id int64) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.owned(userID, id)
	if !ok {
		return nil, notFound(id)
	}
	cp := *t
	return &cp, nil
}

// Create implements task.Repository.
func (s *Store) Create(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now()
	t.ID = s.nextID
	t.Completed = false
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

// Update implements task.Repository.
func (s *Store) Update(_ context.Context, userID, id int64, patch task.Patch) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.owned(userID, id)
	if !ok {
		return nil, notFound(id)
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	t.UpdatedAt = s.now()
	cp := *t
	return &cp, nil
}

// Delete implements task.Repository.
func (s *Store) Delete(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned(userID, id); !ok {
		return notFound(id)
	}
	delete(s.tasks, id)
	return nil
}

// Len reports how many tasks are stored across all users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Store) owned(userID, id int64) (*task.Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, false
	}
	return t, true
}

func notFound(id int64) error {
	return oops.Code("TASK_NOT_FOUND").With("task_id", id).Wrap(task.ErrNotFound)
}

var _ task.Repository = (*Store)(nil)

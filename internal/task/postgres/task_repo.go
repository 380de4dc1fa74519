// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package postgres implements task.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/store"
	"github.com/taskhub/taskhub/internal/task"
)

const taskColumns = `id, user_id, title, description, completed, created_at, updated_at`

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	db store.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db store.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

var _ task.Repository = (*TaskRepository)(nil)

// List returns the user's tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, userID int64) ([]*task.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, oops.Code("TASK_QUERY_FAILED").
			With("operation", "list tasks").
			With("user_id", userID).
			Wrap(err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, oops.Code("TASK_SCAN_FAILED").With("user_id", userID).Wrap(err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TASK_QUERY_FAILED").
			With("operation", "iterate tasks").
			With("user_id", userID).
			Wrap(err)
	}
	return tasks, nil
}

// Get retrieves one of the user's tasks.
func (r *TaskRepository) Get(ctx context.Context, userID, id int64) (*task.Task, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return r.one(row, "get task", userID, id)
}

// Create inserts a task and fills in its ID and timestamps.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO tasks (user_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING id, completed, created_at, updated_at
	`, t.UserID, t.Title, t.Description).Scan(&t.ID, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return oops.Code("TASK_CREATE_FAILED").
			With("operation", "insert task").
			With("user_id", t.UserID).
			Wrap(err)
	}
	return nil
}

// Update applies the non-nil patch fields in a single ownership-guarded statement.
func (r *TaskRepository) Update(ctx context.Context, userID, id int64, patch task.Patch) (*task.Task, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE tasks
		SET title = COALESCE($3, title),
		    description = COALESCE($4, description),
		    completed = COALESCE($5, completed),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		id, userID, patch.Title, patch.Description, patch.Completed)
	return r.one(row, "update task", userID, id)
}

// Delete removes one of the user's tasks.
func (r *TaskRepository) Delete(ctx context.Context, userID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return oops.Code("TASK_DELETE_FAILED").
			With("operation", "delete task").
			With("user_id", userID).
			With("task_id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").With("task_id", id).Wrap(task.ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) one(row pgx.Row, operation string, userID, id int64) (*task.Task, error) {
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TASK_NOT_FOUND").With("task_id", id).Wrap(task.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TASK_QUERY_FAILED").
			With("operation", operation).
			With("user_id", userID).
			With("task_id", id).
			Wrap(err)
	}
	return t, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var t task.Task
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Completed,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

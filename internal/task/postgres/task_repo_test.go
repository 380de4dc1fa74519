// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/task"
	"github.com/taskhub/taskhub/internal/task/postgres"
)

var taskCols = []string{"id", "user_id", "title", "description", "completed", "created_at", "updated_at"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *postgres.TaskRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, postgres.NewTaskRepository(mock)
}

func TestTaskRepository_List(t *testing.T) {
	ctx := context.Background()
	newer := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	t.Run("returns rows in query order", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`FROM tasks\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
			WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows(taskCols).
				AddRow(int64(2), int64(7), "second", "", false, newer, newer).
				AddRow(int64(1), int64(7), "first", "notes", true, older, older))

		tasks, err := repo.List(ctx, 7)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "second", tasks[0].Title)
		assert.True(t, tasks[1].Completed)
	})

	t.Run("no rows yields empty slice", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`FROM tasks`).
			WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows(taskCols))

		tasks, err := repo.List(ctx, 7)
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("query error", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`FROM tasks`).
			WithArgs(int64(7)).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.List(ctx, 7)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestTaskRepository_Create(t *testing.T) {
	mock, repo := newMock(t)
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO tasks`).
		WithArgs(int64(7), "buy milk", "2 litres").
		WillReturnRows(pgxmock.NewRows([]string{"id", "completed", "created_at", "updated_at"}).
			AddRow(int64(12), false, ts, ts))

	tk := &task.Task{UserID: 7, Title: "buy milk", Description: "2 litres"}
	require.NoError(t, repo.Create(context.Background(), tk))
	assert.Equal(t, int64(12), tk.ID)
	assert.Equal(t, ts, tk.CreatedAt)
}

func TestTaskRepository_GetScopedToOwner(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(12), int64(8)).
		WillReturnRows(pgxmock.NewRows(taskCols))

	_, err := repo.Get(context.Background(), 8, 12)
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestTaskRepository_Update(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	done := true

	t.Run("applies patch", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`UPDATE tasks\s+SET title = COALESCE\(\$3, title\)`).
			WithArgs(int64(12), int64(7), (*string)(nil), (*string)(nil), &done).
			WillReturnRows(pgxmock.NewRows(taskCols).
				AddRow(int64(12), int64(7), "buy milk", "", true, ts, ts))

		tk, err := repo.Update(ctx, 7, 12, task.Patch{Completed: &done})
		require.NoError(t, err)
		assert.True(t, tk.Completed)
	})

	t.Run("foreign task is not found", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`UPDATE tasks`).
			WithArgs(int64(12), int64(8), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(taskCols))

		_, err := repo.Update(ctx, 8, 12, task.Patch{Completed: &done})
		assert.ErrorIs(t, err, task.ErrNotFound)
	})
}

func TestTaskRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes owned task", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1 AND user_id = \$2`).
			WithArgs(int64(12), int64(7)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		require.NoError(t, repo.Delete(ctx, 7, 12))
	})

	t.Run("missing task", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectExec(`DELETE FROM tasks`).
			WithArgs(int64(12), int64(7)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.ErrorIs(t, repo.Delete(ctx, 7, 12), task.ErrNotFound)
	})

	t.Run("exec error", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectExec(`DELETE FROM tasks`).
			WithArgs(int64(12), int64(7)).
			WillReturnError(errors.New("deadlock detected"))
		err := repo.Delete(ctx, 7, 12)
		require.Error(t, err)
		assert.NotErrorIs(t, err, task.ErrNotFound)
	})
}

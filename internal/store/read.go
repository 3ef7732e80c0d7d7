package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/intellitodo/internal/task"
)

// Get retrieves a single task by ID.
// Returns a NotFoundError if the ID is absent.
func (s *Store) Get(ctx context.Context, id int64) (task.Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := s.scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, &NotFoundError{ID: id}
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Query returns the tasks selected by the filter, newest first.
//
// FilterToday is evaluated against the store's clock and location at call
// time. Returns an empty slice (not nil) when nothing matches.
func (s *Store) Query(ctx context.Context, f task.Filter) ([]task.Task, error) {
	q, args, err := compileQuery(f, s.now(), s.loc)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return s.queryTasks(ctx, q, args...)
}

// All returns every task, newest first.
func (s *Store) All(ctx context.Context) ([]task.Task, error) {
	return s.Query(ctx, task.FilterAll)
}

// Count returns the number of stored tasks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// DueInMonth returns the tasks whose due date falls inside the given calendar
// month in the store's location, ordered by due date then ID.
func (s *Store) DueInMonth(ctx context.Context, year int, month time.Month) ([]task.Task, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE due_date >= ? AND due_date < ?
		ORDER BY due_date ASC, id ASC
	`, toMillis(start), toMillis(end))
}

func (s *Store) queryTasks(ctx context.Context, q string, args ...any) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

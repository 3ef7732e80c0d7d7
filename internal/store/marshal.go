package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/intellitodo/internal/task"
)

// taskColumns is the column list every read selects, in scanTask order.
const taskColumns = "id, title, description, completed, priority, due_date, created_at, mode"

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask decodes one row selected with taskColumns.
// Times come back in the store's location.
func (s *Store) scanTask(row scanner) (task.Task, error) {
	var (
		t           task.Task
		description sql.NullString
		completed   int
		priority    sql.NullString
		dueDate     sql.NullInt64
		createdAt   int64
		mode        string
	)
	if err := row.Scan(&t.ID, &t.Title, &description, &completed, &priority, &dueDate, &createdAt, &mode); err != nil {
		return task.Task{}, err
	}

	t.Description = description.String
	t.Completed = completed != 0
	t.Priority = task.Priority(priority.String)
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	if dueDate.Valid {
		d := s.fromMillis(dueDate.Int64)
		t.DueDate = &d
	}
	t.CreatedAt = s.fromMillis(createdAt)
	t.Mode = task.Mode(mode)
	return t, nil
}

func (s *Store) fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(s.loc)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// nullMillis converts an optional time to a nullable column value.
func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// validateDraft normalizes a draft and checks it against the task contract.
func validateDraft(d task.Draft) (task.Draft, error) {
	d = d.Normalize()
	if d.Title == "" {
		return d, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !d.Priority.Valid() {
		return d, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", d.Priority)}
	}
	if !d.Mode.Valid() {
		return d, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown value %q", d.Mode)}
	}
	return d, nil
}

// validateRecord normalizes a full record for BulkPut.
// A zero CreatedAt is filled with now.
func validateRecord(t task.Task, now time.Time) (task.Task, error) {
	if t.ID < 0 {
		return t, &ValidationError{Field: "id", Reason: fmt.Sprintf("must not be negative, got %d", t.ID)}
	}
	d, err := validateDraft(task.Draft{Title: t.Title, Priority: t.Priority, Mode: t.Mode})
	if err != nil {
		return t, err
	}
	t.Title, t.Priority, t.Mode = d.Title, d.Priority, d.Mode
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return t, nil
}

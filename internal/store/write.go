package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/intellitodo/internal/task"
)

const insertTaskSQL = `
	INSERT INTO tasks
	(title, description, completed, priority, due_date, created_at, mode)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Add inserts a new task built from the draft and returns its ID.
// CreatedAt is taken from the store's clock.
//
// Returns a ValidationError if the trimmed title is empty.
func (s *Store) Add(ctx context.Context, d task.Draft) (int64, error) {
	ids, err := s.insertDrafts(ctx, []task.Draft{d})
	if err != nil {
		return 0, fmt.Errorf("add task: %w", err)
	}
	return ids[0], nil
}

// BulkAdd inserts all drafts in one transaction and returns their IDs in
// draft order. Subscribers are notified once, after the whole batch commits,
// so no subscriber observes a partially written batch.
//
// Validation happens before anything is written; one invalid draft rejects
// the whole batch.
func (s *Store) BulkAdd(ctx context.Context, drafts []task.Draft) ([]int64, error) {
	if len(drafts) == 0 {
		return []int64{}, nil
	}
	ids, err := s.insertDrafts(ctx, drafts)
	if err != nil {
		return nil, fmt.Errorf("bulk add: %w", err)
	}
	return ids, nil
}

func (s *Store) insertDrafts(ctx context.Context, drafts []task.Draft) ([]int64, error) {
	valid := make([]task.Draft, len(drafts))
	for i, d := range drafts {
		v, err := validateDraft(d)
		if err != nil {
			return nil, err
		}
		valid[i] = v
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, insertTaskSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := toMillis(s.now())
	ids := make([]int64, 0, len(valid))
	for _, d := range valid {
		res, err := stmt.ExecContext(ctx,
			d.Title,
			d.Description,
			0,
			string(d.Priority),
			nullMillis(d.DueDate),
			createdAt,
			string(d.Mode),
		)
		if err != nil {
			return nil, fmt.Errorf("insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.changed()

	s.log.Debug("tasks added", "count", len(ids), "first_id", ids[0])
	return ids, nil
}

// Update merges the given fields into an existing task.
// CreatedAt and Mode cannot be changed; Patch has no field for them.
//
// Returns a NotFoundError if id is absent, a ValidationError if the patch
// would blank the title or set an unknown priority.
func (s *Store) Update(ctx context.Context, id int64, p task.Patch) error {
	var (
		sets []string
		args []any
	)
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return fmt.Errorf("update task: %w", &ValidationError{Field: "title", Reason: "must not be empty"})
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolInt(*p.Completed))
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return fmt.Errorf("update task: %w", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", *p.Priority)})
		}
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	switch {
	case p.ClearDueDate:
		sets = append(sets, "due_date = NULL")
	case p.DueDate != nil:
		sets = append(sets, "due_date = ?")
		args = append(args, toMillis(*p.DueDate))
	}

	if len(sets) == 0 {
		// Nothing to write, but the contract still reports unknown IDs.
		if _, err := s.Get(ctx, id); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	s.changed()
	return nil
}

// Delete removes a task by ID.
// Returns a NotFoundError if id is absent; UI callers that want idempotent
// deletes should treat that as a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.changed()
	return nil
}

// BulkPut upserts full records by ID in one transaction and returns the
// number of records written.
//
// A record whose ID exists replaces every column of the stored row,
// CreatedAt and Mode included; nothing is field-merged. A record with ID 0
// or an ID not in the store is inserted (keeping the given ID when non-zero).
// Used by snapshot restore only. Any invalid record aborts the whole batch
// and leaves the store unchanged.
func (s *Store) BulkPut(ctx context.Context, records []task.Task) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := s.now()
	valid := make([]task.Task, len(records))
	for i, r := range records {
		v, err := validateRecord(r, now)
		if err != nil {
			return 0, fmt.Errorf("bulk put: record %d: %w", i, err)
		}
		valid[i] = v
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("bulk put: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks
		(id, title, description, completed, priority, due_date, created_at, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			completed = excluded.completed,
			priority = excluded.priority,
			due_date = excluded.due_date,
			created_at = excluded.created_at,
			mode = excluded.mode
	`)
	if err != nil {
		return 0, fmt.Errorf("bulk put: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range valid {
		var id any
		if r.ID != 0 {
			id = r.ID
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			r.Title,
			r.Description,
			boolInt(r.Completed),
			string(r.Priority),
			nullMillis(r.DueDate),
			toMillis(r.CreatedAt),
			string(r.Mode),
		); err != nil {
			return 0, fmt.Errorf("bulk put: upsert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("bulk put: commit: %w", err)
	}
	s.changed()

	s.log.Debug("tasks upserted", "count", len(valid))
	return len(valid), nil
}

// requireRow converts "no rows affected" into a NotFoundError.
func requireRow(res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking:
// 0 - Empty database
// 1 - tasks(id, title, completed, due_date, created_at, mode)
// 2 - Added priority and description, backfilled on existing rows
const currentSchemaVersion = 2

// schemaVersion declares one version of the tasks table: the columns it
// adds, the secondary indexes it needs and the upgrade that brings a database
// at the previous version up to it.
type schemaVersion struct {
	version  int
	columns  []column
	indexes  []string
	backfill []string
}

type column struct {
	name string
	decl string
}

// schemaVersions must be sorted by version and contiguous from 1.
var schemaVersions = []schemaVersion{
	{
		version: 1,
		columns: []column{
			{"title", "TEXT NOT NULL"},
			{"completed", "INTEGER NOT NULL DEFAULT 0"},
			{"due_date", "INTEGER"},
			{"created_at", "INTEGER NOT NULL"},
			{"mode", "TEXT NOT NULL"},
		},
		indexes: []string{"title", "completed", "due_date", "created_at", "mode"},
	},
	{
		version: 2,
		columns: []column{
			{"priority", "TEXT"},
			{"description", "TEXT"},
		},
		indexes: []string{"priority"},
		backfill: []string{
			`UPDATE tasks SET priority = 'medium' WHERE priority IS NULL`,
			`UPDATE tasks SET description = '' WHERE description IS NULL`,
		},
	},
}

// runMigrations brings the database up to currentSchemaVersion.
//
// from < 0 reads the starting point from PRAGMA user_version. Passing an
// explicit from re-runs every step above it, which is how tests simulate a
// restart in the middle of a migration.
func runMigrations(ctx context.Context, db *sql.DB, from int) error {
	if from < 0 {
		if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&from); err != nil {
			return fmt.Errorf("get user_version: %w", err)
		}
	}
	if from > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", from, currentSchemaVersion)
	}

	for _, v := range schemaVersions {
		if v.version <= from {
			continue
		}
		if err := migrateTo(ctx, db, v); err != nil {
			return err
		}
	}
	return nil
}

// migrateTo applies a single version inside one transaction, including the
// user_version bump, so a version is either fully applied or not at all.
func migrateTo(ctx context.Context, db *sql.DB, v schemaVersion) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin tx: %w", v.version, err)
	}
	defer tx.Rollback()

	// CREATE TABLE IF NOT EXISTS is a no-op once v1 has run
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT
		)
	`); err != nil {
		return fmt.Errorf("migrate to v%d: create table: %w", v.version, err)
	}

	existing, err := tableColumns(ctx, tx, "tasks")
	if err != nil {
		return fmt.Errorf("migrate to v%d: %w", v.version, err)
	}
	for _, c := range v.columns {
		if existing[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE tasks ADD COLUMN %s %s", c.name, addColumnDecl(c.decl))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v%d: add column %s: %w", v.version, c.name, err)
		}
	}

	for _, col := range v.indexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_tasks_%s ON tasks(%s)", col, col)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v%d: index %s: %w", v.version, col, err)
		}
	}

	for _, stmt := range v.backfill {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v%d: backfill: %w", v.version, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v.version)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", v.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d: commit: %w", v.version, err)
	}
	return nil
}

// addColumnDecl adapts a column declaration for ALTER TABLE ADD COLUMN.
// SQLite rejects NOT NULL without a default there; such columns only occur in
// v1, which only reaches this path when the bare id table was just created
// and is still empty, so a zero default is safe.
func addColumnDecl(decl string) string {
	switch decl {
	case "TEXT NOT NULL":
		return "TEXT NOT NULL DEFAULT ''"
	case "INTEGER NOT NULL":
		return "INTEGER NOT NULL DEFAULT 0"
	}
	return decl
}

// tableColumns returns the set of column names currently defined on table.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return cols, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides durable storage for tasks.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db  *sql.DB
	now func() time.Time
	loc *time.Location
	log *slog.Logger

	// writeMu serializes mutations so commit order and notification order agree.
	writeMu sync.Mutex
	commits *Clock
	notes   *noteQueue

	// subsMu serializes callbacks. regMu guards the registry and is never
	// held while a callback runs. Lock order: subsMu, writeMu, regMu.
	subsMu sync.Mutex
	regMu  sync.Mutex
	subs   []*Subscription
	nextID int

	notifierDone chan struct{}
	closeOnce    sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of "now" used for CreatedAt and the today view.
// Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLocation sets the time zone that defines local midnight.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations before returning, so the store
// never serves a query against an old schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:           db,
		now:          time.Now,
		loc:          time.Local,
		log:          slog.Default(),
		commits:      NewClock(),
		notes:        newNoteQueue(),
		notifierDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := runMigrations(context.Background(), db, -1); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	go s.runNotifier()

	return s, nil
}

// Close stops live-query delivery and closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		if s.notes != nil {
			s.notes.Close()
			<-s.notifierDone
		}
		err = s.db.Close()
	})
	return err
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Location returns the time zone that defines local midnight for this store.
func (s *Store) Location() *time.Location {
	return s.loc
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// Package snapshot serializes the whole task set and moves it to and from a
// remote file store or a local file.
//
// Merge is replace-by-id: a restored record overwrites the local record with
// the same ID and records with new IDs are inserted. Nothing is merged field
// by field and local records absent from the snapshot are kept.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/task"
)

// TaskStore is the part of the store the engine reads and restores into.
type TaskStore interface {
	All(ctx context.Context) ([]task.Task, error)
	BulkPut(ctx context.Context, records []task.Task) (int, error)
}

// RemoteFactory opens a Remote for the given location.
type RemoteFactory func(cfg config.WebDAV) (Remote, error)

// Engine runs export, backup, restore and local import/export.
type Engine struct {
	store  TaskStore
	now    func() time.Time
	remote RemoteFactory
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the source of ExportedAt and of the default createdAt
// for imported records. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRemote replaces the WebDAV remote. Default: NewWebDAVRemote.
func WithRemote(f RemoteFactory) Option {
	return func(e *Engine) {
		e.remote = f
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New creates an Engine over the store.
func New(store TaskStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		remote: func(cfg config.WebDAV) (Remote, error) {
			return NewWebDAVRemote(cfg)
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export captures every task.
func (e *Engine) Export(ctx context.Context) (Snapshot, error) {
	tasks, err := e.store.All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: %w", err)
	}
	return Snapshot{Tasks: tasks, ExportedAt: e.now()}, nil
}

func (e *Engine) encodeAll(ctx context.Context) ([]byte, int, error) {
	s, err := e.Export(ctx)
	if err != nil {
		return nil, 0, err
	}
	data, err := Encode(s)
	if err != nil {
		return nil, 0, err
	}
	return data, len(s.Tasks), nil
}

// Backup writes the current snapshot to BackupPath, replacing any earlier
// backup.
//
// Returns a *config.MissingError if no server URL is configured and a
// *TransportError when the remote cannot be reached or rejects the write.
func (e *Engine) Backup(ctx context.Context, cfg config.WebDAV) error {
	remote, err := e.remote(cfg)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	data, n, err := e.encodeAll(ctx)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := remote.Write(ctx, BackupPath, data); err != nil {
		return fmt.Errorf("backup: %w", &TransportError{Op: "write", Err: err})
	}
	e.log.Info("backup written", "path", BackupPath, "tasks", n, "bytes", len(data))
	return nil
}

// Restore reads the backup from BackupPath and upserts it into the store,
// returning the number of records written.
//
// Returns a *NotFoundError when there is no backup, a *TransportError on
// remote failure and a *FormatError for unreadable content. The store is
// unchanged on any error.
func (e *Engine) Restore(ctx context.Context, cfg config.WebDAV) (int, error) {
	remote, err := e.remote(cfg)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}

	ok, err := remote.Exists(ctx, BackupPath)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", &TransportError{Op: "stat", Err: err})
	}
	if !ok {
		return 0, fmt.Errorf("restore: %w", &NotFoundError{Path: BackupPath})
	}

	data, err := remote.Read(ctx, BackupPath)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", &TransportError{Op: "read", Err: err})
	}

	n, err := e.apply(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}
	e.log.Info("backup restored", "path", BackupPath, "tasks", n)
	return n, nil
}

// ExportTo writes the current snapshot to w.
func (e *Engine) ExportTo(ctx context.Context, w io.Writer) error {
	data, _, err := e.encodeAll(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Import reads a snapshot from r and upserts it like Restore.
func (e *Engine) Import(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("import: read: %w", err)
	}
	n, err := e.apply(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	return n, nil
}

func (e *Engine) apply(ctx context.Context, data []byte) (int, error) {
	tasks, err := Decode(data, e.now())
	if err != nil {
		return 0, err
	}
	return e.store.BulkPut(ctx, tasks)
}

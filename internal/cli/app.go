package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/ingest"
	"github.com/roach88/intellitodo/internal/llm"
	"github.com/roach88/intellitodo/internal/offline"
	"github.com/roach88/intellitodo/internal/snapshot"
	"github.com/roach88/intellitodo/internal/store"
)

// app is the per-invocation wiring shared by every command.
type app struct {
	opts     *RootOptions
	out      *OutputFormatter
	log      *slog.Logger
	printer  *message.Printer
	settings *config.File
	store    *store.Store
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *RootOptions) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o *RootOptions) language() language.Tag {
	if o.Language != language.Und {
		return o.Language
	}
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		v, _, _ = strings.Cut(v, ".")
		if tag, err := language.Parse(v); err == nil {
			return tag
		}
	}
	return language.English
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func newLogger(verbose bool, w io.Writer) *slog.Logger {
	// Configure logging based on verbose flag
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// openSettings prepares the formatter, logger and settings file without
// touching the database.
func openSettings(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	a := &app{
		opts:    opts,
		out:     newFormatter(opts, cmd),
		log:     newLogger(opts.Verbose, cmd.ErrOrStderr()),
		printer: message.NewPrinter(opts.language()),
	}
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, a.out.Fail("failed to load settings", err)
	}
	a.settings = settings
	return a, nil
}

// openApp is openSettings plus the task store.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	a, err := openSettings(opts, cmd)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.Database); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, a.out.Fail("failed to create data directory", err)
		}
	}

	a.log.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database,
		store.WithClock(opts.now),
		store.WithLocation(opts.location()),
		store.WithLogger(a.log.With("component", "store")),
	)
	if err != nil {
		return nil, a.out.Fail("failed to open database", err)
	}
	a.store = st
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close database", "error", err)
	}
}

func (a *app) coordinator(online bool) *ingest.Coordinator {
	parser := offline.New(
		offline.WithClock(a.opts.now),
		offline.WithLogger(a.log.With("component", "offline")),
	)

	llmOpts := []llm.Option{
		llm.WithClock(a.opts.now),
		llm.WithLocation(a.opts.location()),
		llm.WithLogger(a.log.With("component", "llm")),
	}
	if a.opts.HTTPClient != nil {
		llmOpts = append(llmOpts, llm.WithHTTPClient(a.opts.HTTPClient))
	}

	return ingest.New(a.store, parser, llm.New(llmOpts...), a.settings,
		ingest.WithLogger(a.log.With("component", "ingest")),
		ingest.WithMode(modeFor(online)),
		ingest.WithNotices(func(n ingest.Notice) {
			a.out.Notice("online parsing failed, saved offline: %v", n.Err)
		}),
	)
}

func (a *app) snapshots() *snapshot.Engine {
	opts := []snapshot.Option{
		snapshot.WithClock(a.opts.now),
		snapshot.WithLogger(a.log.With("component", "snapshot")),
	}
	if a.opts.Remote != nil {
		opts = append(opts, snapshot.WithRemote(a.opts.Remote))
	}
	return snapshot.New(a.store, opts...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// parseID reads a task ID argument, reporting a command error when it is not
// a positive integer.
func (a *app) parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		msg := fmt.Sprintf("invalid task id %q", s)
		_ = a.out.Error(ErrCodeBadArgs, msg, nil)
		return 0, NewExitError(ExitCommandError, msg)
	}
	return id, nil
}

// badArgs reports a command error.
func (a *app) badArgs(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	_ = a.out.Error(ErrCodeBadArgs, msg, nil)
	return NewExitError(ExitCommandError, msg)
}

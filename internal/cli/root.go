package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/roach88/intellitodo/internal/config"
	"github.com/roach88/intellitodo/internal/snapshot"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	ConfigPath string

	// Now, Location, Language, HTTPClient and Remote override the
	// environment (for testing). Zero values mean the real thing.
	Now        func() time.Time
	Location   *time.Location
	Language   language.Tag
	HTTPClient *http.Client
	Remote     snapshot.RemoteFactory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the intellitodo CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intellitodo",
		Short: "IntelliTodo - capture and sync tasks",
		Long: `Capture tasks from free-form text, keep them in a local database and
back them up to a WebDAV server.

Text is parsed offline by default. With --online it is sent to an
OpenAI-compatible endpoint that can split it into several tasks.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Database == "" {
				path, err := defaultDatabasePath()
				if err != nil {
					return err
				}
				opts.Database = path
			}
			if opts.ConfigPath == "" {
				path, err := config.DefaultPath()
				if err != nil {
					return err
				}
				opts.ConfigPath = path
			}
			return nil
		},
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $XDG_DATA_HOME/intellitodo/tasks.db)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to settings file (default $XDG_CONFIG_HOME/intellitodo/config.yaml)")

	// Add subcommands
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListenCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewFocusCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// Execute runs the CLI with os.Args. Errors that a command did not already
// report are printed to stderr; use GetExitCode on the result.
func Execute(version string) error {
	cmd := NewRootCommand()
	cmd.Version = version
	err := cmd.Execute()
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return WrapExitError(ExitCommandError, "invalid command line", err)
	}
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// defaultDatabasePath returns $XDG_DATA_HOME/intellitodo/tasks.db, falling
// back to ~/.local/share/intellitodo/tasks.db.
func defaultDatabasePath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "intellitodo", "tasks.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "intellitodo", "tasks.db"), nil
}

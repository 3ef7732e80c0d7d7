package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/intellitodo/internal/snapshot"
)

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload all tasks to the WebDAV server",
		Long: `Upload a snapshot of every task to ` + snapshot.BackupPath + ` on the configured
WebDAV server, replacing the previous backup.

Requires webdavUrl (and usually webdavUser/webdavPass) to be set with
"intellitodo config set".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(rootOpts, cmd)
		},
	}
}

func runBackup(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.snapshots().Backup(ctx, a.settings.Settings().WebDAV()); err != nil {
		return a.out.Fail("backup failed", err)
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return a.out.Fail("failed to count tasks", err)
	}
	return a.out.Render(map[string]interface{}{"path": snapshot.BackupPath, "tasks": n}, func(w io.Writer) {
		fmt.Fprintln(w, a.printer.Sprintf("Backed up %d task(s) to %s.", n, snapshot.BackupPath))
	})
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Merge the WebDAV backup into the local tasks",
		Long: `Download the backup from the WebDAV server and merge it into the local
database. Tasks in the backup replace local tasks with the same ID; local
tasks missing from the backup are kept. Nothing changes if the backup is
missing or unreadable.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(rootOpts, cmd)
		},
	}
}

func runRestore(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.snapshots().Restore(cmd.Context(), a.settings.Settings().WebDAV())
	if err != nil {
		return a.out.Fail("restore failed", err)
	}
	return a.out.Render(map[string]int{"restored": n}, func(w io.Writer) {
		fmt.Fprintln(w, a.printer.Sprintf("Restored %d task(s).", n))
	})
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write all tasks as a JSON snapshot",
		Long: `Write a snapshot of every task in the backup format. Without a file the
snapshot goes to stdout.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runExport(rootOpts, path, cmd)
		},
	}
}

func runExport(opts *RootOptions, path string, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	engine := a.snapshots()
	if path == "" {
		if err := engine.ExportTo(ctx, a.out.Writer); err != nil {
			return a.out.Fail("export failed", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return a.out.Fail("export failed", err)
	}
	if err := engine.ExportTo(ctx, f); err != nil {
		f.Close()
		return a.out.Fail("export failed", err)
	}
	if err := f.Close(); err != nil {
		return a.out.Fail("export failed", err)
	}

	n, err := a.store.Count(ctx)
	if err != nil {
		return a.out.Fail("failed to count tasks", err)
	}
	return a.out.Render(map[string]interface{}{"path": path, "tasks": n}, func(w io.Writer) {
		fmt.Fprintln(w, a.printer.Sprintf("Exported %d task(s) to %s.", n, path))
	})
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a JSON snapshot into the local tasks",
		Long: `Merge a snapshot written by export (or a downloaded backup) into the
local database, with the same rules as restore. Use "-" to read stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return a.out.Fail("import failed", err)
		}
		defer f.Close()
		r = f
	}

	n, err := a.snapshots().Import(cmd.Context(), r)
	if err != nil {
		return a.out.Fail("import failed", err)
	}
	return a.out.Render(map[string]int{"imported": n}, func(w io.Writer) {
		fmt.Fprintln(w, a.printer.Sprintf("Imported %d task(s).", n))
	})
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/intellitodo/internal/config"
)

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change settings",
		Long: `Read and change the settings file. Keys:
  apiKey, baseUrl, modelName      language model endpoint (online mode)
  webdavUrl, webdavUser, webdavPass  backup server

INTELLITODO_* environment variables override stored values at run time.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Print one stored setting",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set <key> <value>",
		Short:         "Store one setting",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(rootOpts, args[0], args[1], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Print all effective settings, secrets masked",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(rootOpts, cmd)
		},
	})

	return cmd
}

func runConfigGet(opts *RootOptions, key string, cmd *cobra.Command) error {
	a, err := openSettings(opts, cmd)
	if err != nil {
		return err
	}
	value, err := a.settings.Get(key)
	if err != nil {
		return a.out.Fail("failed to read setting", err)
	}
	return a.out.Render(map[string]string{key: value}, func(w io.Writer) {
		fmt.Fprintln(w, value)
	})
}

func runConfigSet(opts *RootOptions, key, value string, cmd *cobra.Command) error {
	a, err := openSettings(opts, cmd)
	if err != nil {
		return err
	}
	if err := a.settings.Set(key, value); err != nil {
		return a.out.Fail("failed to change setting", err)
	}
	if err := a.settings.Save(); err != nil {
		return a.out.Fail("failed to save settings", err)
	}
	a.out.VerboseLog("saved %s", a.settings.Path())
	return a.out.Render(map[string]string{"key": key, "path": a.settings.Path()}, func(w io.Writer) {
		fmt.Fprintf(w, "Set %s\n", key)
	})
}

func runConfigList(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openSettings(opts, cmd)
	if err != nil {
		return err
	}
	values := a.settings.Settings().Redacted()
	return a.out.Render(values, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, key := range config.Keys() {
			fmt.Fprintf(tw, "%s\t%s\n", key, values[key])
		}
		tw.Flush()
	})
}

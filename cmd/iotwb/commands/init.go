package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/config"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default workbench settings",
		Long: `Write the default settings file and create the operation journal.

The settings file is ~/.iotwb/settings.yaml unless --config or IOTWB_CONFIG
names another one. An existing file is kept unless --force is given.`,
		Example: `  # Write ~/.iotwb/settings.yaml
  iotwb init

  # Reset a custom settings file
  iotwb init --config ./iotwb.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.SettingsPath(opts.configPath)
			log.Debug().Str("path", path).Bool("force", force).Msg("Initializing settings")

			_, err := os.Stat(path)
			switch {
			case err == nil && !force:
				return fmt.Errorf("settings file %s already exists, use --force to overwrite", path)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("failed to check settings file: %w", err)
			}

			if err := config.DefaultSettings().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created settings file: %s\n", path)

			opts.configPath = path
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			if w.store != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized journal: %s\n", w.settings.Journal)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")

	return cmd
}

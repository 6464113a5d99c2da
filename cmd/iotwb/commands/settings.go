package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newSettingsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Configure device settings",
		Long: `Run the interactive settings of every device in the project, such as the
upload port or the firmware CRC. A failing device is reported and the others
still run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			return w.runPhase(cmd.Context(), engine.PhaseSettings, func(ctx context.Context, p project.Project) (bool, error) {
				return p.ConfigDeviceSettings(ctx), nil
			})
		},
	}

	return cmd
}

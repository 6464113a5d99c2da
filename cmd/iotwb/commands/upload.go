package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newUploadCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload compiled device code",
		Long: `Upload the compiled device code of every component that supports it.

Arduino boards are flashed with arduino-cli on the configured port. Embedded
Linux boards receive the build output over SSH.`,
		Example: `  # Upload to the board attached to this machine
  iotwb upload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			return w.runPhase(cmd.Context(), engine.PhaseUpload, func(ctx context.Context, p project.Project) (bool, error) {
				return p.Upload(ctx)
			})
		},
	}

	return cmd
}

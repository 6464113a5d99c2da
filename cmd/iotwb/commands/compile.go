package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newCompileCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile device code",
		Long: `Compile the device code of every component that supports it.

Prerequisites of all compilable components are checked first. A board hook
script (.iotworkbench/hooks/precompile.star) may skip the build.`,
		Example: `  # Compile the project in the current folder
  iotwb compile

  # Compile another project
  iotwb compile --project ~/projects/weather-station`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			return w.runPhase(cmd.Context(), engine.PhaseCompile, func(ctx context.Context, p project.Project) (bool, error) {
				return p.Compile(ctx)
			})
		},
	}

	return cmd
}

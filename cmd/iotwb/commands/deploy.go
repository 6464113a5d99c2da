package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newDeployCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy cloud components",
		Long: `Deploy every deployable cloud component of the project.

Components are deployed in order after confirmation. Declining a component
cancels the deployment; a failed or denied component stops it.`,
		Example: `  # Deploy interactively
  iotwb deploy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			return w.runPhase(cmd.Context(), engine.PhaseDeploy, func(ctx context.Context, p project.Project) (bool, error) {
				return p.Deploy(ctx, w.authenticator())
			})
		},
	}

	return cmd
}

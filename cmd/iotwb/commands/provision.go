package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newProvisionCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision cloud components",
		Long: `Provision every cloud component of the project, one at a time.

You are signed in to Azure once, then asked to confirm each component before
it is provisioned. Project policies may deny a component; a denial stops the
provision.`,
		Example: `  # Provision interactively
  iotwb provision

  # Provision into a fixed resource group without prompts
  IOTWB_RESOURCE_GROUP=rg-weather iotwb provision --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			return w.runPhase(cmd.Context(), engine.PhaseProvision, func(ctx context.Context, p project.Project) (bool, error) {
				return p.Provision(ctx, w.authenticator())
			})
		},
	}

	return cmd
}

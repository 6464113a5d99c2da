package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newCreateCommand(opts *globalOptions) *cobra.Command {
	var (
		boardID    string
		listBoards bool
	)

	cmd := &cobra.Command{
		Use:   "create [folder]",
		Short: "Create a new IoT project",
		Long: `Create a new IoT project for a board. The folder is created when it does
not exist yet.

Embedded Linux boards get a container project, every other board a workspace
project. The device code, editor settings and project descriptor are written
from the board template.`,
		Example: `  # List the supported boards
  iotwb create --list-boards

  # Create an MXChip project in ./weather-station
  iotwb create weather-station --board mxchip_az3166`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.projectPath = args[0]
			}

			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			if listBoards {
				return printBoards(cmd, w.deps.Catalog)
			}
			if boardID == "" {
				return fmt.Errorf("--board is required")
			}

			return w.record(cmd.Context(), "create", func(ctx context.Context) (*engine.OperationOutcome, error) {
				if err := os.MkdirAll(w.root, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create project folder: %w", err)
				}
				p, err := project.Create(ctx, w.root, boardID, w.deps)
				if err != nil {
					return nil, err
				}
				if p == nil {
					return engine.NewOperationOutcome("create", engine.OutcomeCanceled), nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s project in %s\n", boardID, w.root)
				return engine.NewOperationOutcome("create", engine.OutcomeSucceeded), nil
			})
		},
	}

	cmd.Flags().StringVarP(&boardID, "board", "b", "", "board identifier")
	cmd.Flags().BoolVar(&listBoards, "list-boards", false, "list the supported boards and exit")

	return cmd
}

func printBoards(cmd *cobra.Command, catalog *device.Catalog) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEVICE TYPE")
	for _, b := range catalog.Boards() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, b.Name, b.DeviceType)
	}
	return tw.Flush()
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/device"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newCrcCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crc",
		Short: "Print the CRC of the compiled firmware",
		Long: `Compute the CRC-32 checksum and size of the firmware image in each device's
build folder. Run compile first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			return w.record(cmd.Context(), "crc", func(ctx context.Context) (*engine.OperationOutcome, error) {
				p, err := project.Open(ctx, w.root, w.deps)
				if err != nil {
					return nil, err
				}

				outcome := engine.NewOperationOutcome("crc", engine.OutcomeSucceeded)
				for _, d := range p.Devices() {
					info, err := device.GenerateCrc(ctx, w.deviceOptions(), d.DeviceFolder())
					if err != nil {
						return nil, err
					}
					fmt.Fprint(cmd.OutOrStdout(), info.Report())
				}
				return outcome, nil
			})
		},
	}

	return cmd
}

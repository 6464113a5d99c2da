package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newConfigureCommand(opts *globalOptions) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure the project environment",
		Long: `Configure the editor and build environment of a folder for a platform.

Without --platform you are asked to pick one. A folder configured for
embedded Linux that is not a project yet is converted into a container
project.`,
		Example: `  # Pick the platform interactively
  iotwb configure

  # Convert an existing folder to an embedded Linux project
  iotwb configure --platform linux --project ~/src/gateway`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var selected project.Platform
			if platform != "" {
				p, err := parsePlatform(platform)
				if err != nil {
					return err
				}
				selected = p
			}

			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			configurer := project.NewEnvironmentConfigurer(w.deps)
			return w.record(cmd.Context(), string(engine.PhaseConfigure), func(ctx context.Context) (*engine.OperationOutcome, error) {
				var (
					ok  bool
					err error
				)
				if selected == "" {
					ok, err = configurer.Configure(ctx, w.root)
				} else {
					ok, err = configurer.ConfigureAsPlatform(ctx, selected, w.root, engine.ScaffoldWorkspace)
				}
				if err != nil {
					return nil, err
				}
				if !ok {
					return engine.NewOperationOutcome("configure", engine.OutcomeFailed), nil
				}
				return engine.NewOperationOutcome("configure", engine.OutcomeSucceeded), nil
			})
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "target platform: arduino or linux")

	return cmd
}

func parsePlatform(value string) (project.Platform, error) {
	switch strings.ToLower(value) {
	case "arduino":
		return project.PlatformArduino, nil
	case "linux", "embedded-linux":
		return project.PlatformEmbeddedLinux, nil
	default:
		return "", fmt.Errorf("unknown platform %q (want arduino or linux)", value)
	}
}

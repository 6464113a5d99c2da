package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/codegen"
	"github.com/iotworkbench/iotwb/pkg/engine"
	"github.com/iotworkbench/iotwb/pkg/project"
)

func newCodegenCommand(opts *globalOptions) *cobra.Command {
	var (
		target           string
		model            string
		connectionString string
		provision        string
		open             bool
	)

	cmd := &cobra.Command{
		Use:   "codegen",
		Short: "Generate device code from a capability model",
		Long: `Generate an ANSI C Visual Studio project from a device capability model with
the PnP code generator. The code generator must be installed in the folder
configured as codegen_dir. With --open the generated folder is opened in the
editor.`,
		Example: `  # Generate a project using a connection string
  iotwb codegen --model sensor.capabilitymodel.json --target ./sensor \
    --connection-string "HostName=..."

  # Generate and open the result
  iotwb codegen --model sensor.capabilitymodel.json --target ./sensor --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provisionType, err := codegen.ParseProvisionType(provision)
			if err != nil {
				return err
			}

			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			targetPath, err := filepath.Abs(target)
			if err != nil {
				return fmt.Errorf("failed to resolve target path: %w", err)
			}

			generator := codegen.NewGenerator(w.deps.Runner, w.deps.Templates, w.settings.Layout, w.settings.CodegenDir, "", w.logger)
			return w.record(cmd.Context(), "codegen", func(ctx context.Context) (*engine.OperationOutcome, error) {
				if ok, err := generator.CheckPrerequisites(); err != nil || !ok {
					if err == nil {
						err = engine.NewPrerequisiteError(fmt.Sprintf("%s is not installed", generator.Command()), nil)
					}
					return nil, err
				}

				ok, err := generator.GenerateCode(ctx, codegen.Request{
					TargetPath:       targetPath,
					ModelFile:        model,
					ConnectionString: connectionString,
					Provision:        provisionType,
				})
				if err != nil {
					return nil, err
				}
				if !ok {
					return engine.NewOperationOutcome("codegen", engine.OutcomeFailed), fmt.Errorf("code generation failed")
				}
				w.deps.Notifier.Info(fmt.Sprintf("Device code generated in %s", targetPath))
				if err := openGenerated(ctx, w.deps, targetPath, open); err != nil {
					return nil, err
				}
				return engine.NewOperationOutcome("codegen", engine.OutcomeSucceeded), nil
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "output folder")
	cmd.Flags().StringVarP(&model, "model", "m", "", "device capability model file")
	cmd.Flags().StringVar(&connectionString, "connection-string", "", "device connection string")
	cmd.Flags().StringVar(&provision, "provision", string(codegen.ProvisionConnectionString), "provision type: connectionString or iotcSasKey")
	cmd.Flags().BoolVar(&open, "open", false, "open the generated folder in the editor")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

// openGenerated opens the generated folder, or tells the user how to.
func openGenerated(ctx context.Context, deps project.Deps, path string, open bool) error {
	if open {
		return project.OpenFolder(ctx, deps, path)
	}
	deps.Notifier.Info(fmt.Sprintf("Open it with: %s %s (or pass --open)", project.EditorCLI, path))
	return nil
}

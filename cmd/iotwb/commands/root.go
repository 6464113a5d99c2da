package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	projectPath string
	yes         bool
	verbose     bool
	version     string
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "iotwb",
		Short: "IoT Workbench - device and cloud project lifecycle",
		Long: `iotwb creates IoT projects and drives them through their lifecycle.

A project holds one device (an Arduino board or an embedded Linux board) and
optional cloud components. Each phase runs over every component that supports it:
  - compile and upload device code
  - provision and deploy cloud components
  - configure the editor environment and device settings

Provision and deploy items are checked against the Rego policies in
.iotworkbench/policies before they run.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "settings file path (default ~/.iotwb/settings.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.projectPath, "project", "p", ".", "project root folder")
	rootCmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "answer every prompt automatically")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newCreateCommand(opts))
	rootCmd.AddCommand(newConfigureCommand(opts))
	rootCmd.AddCommand(newCompileCommand(opts))
	rootCmd.AddCommand(newUploadCommand(opts))
	rootCmd.AddCommand(newProvisionCommand(opts))
	rootCmd.AddCommand(newDeployCommand(opts))
	rootCmd.AddCommand(newSettingsCommand(opts))
	rootCmd.AddCommand(newCrcCommand(opts))
	rootCmd.AddCommand(newCodegenCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))
	rootCmd.AddCommand(newPolicyCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

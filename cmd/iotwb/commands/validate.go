package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/project"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	var listSchemas bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the project descriptor and policy files",
		Long: `Check the project descriptor against the workbench schemas, one key at a time.

Each cloud component is checked against the service schema and the remote
target against the remote schema. Unknown keys and policy files that could not
be loaded are reported as warnings. The command fails when an error is found.`,
		Example: `  # Check the current project
  iotwb validate

  # Show the schema names
  iotwb validate --list-schemas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			out := cmd.OutOrStdout()
			if listSchemas {
				for _, name := range w.deps.Schemas.ListSchemas() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			findings, err := project.ValidateDescriptor(cmd.Context(), w.root, w.settings.Layout, w.deps.Schemas)
			if err != nil {
				return err
			}
			for _, s := range w.project.Skipped {
				findings = append(findings, project.Finding{Key: s.Path, Message: s.Err.Error(), Warning: true})
			}

			problems := 0
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, f := range findings {
				level := "warning"
				if !f.Warning {
					level = "error"
					problems++
				}
				key := f.Key
				if key == "" {
					key = w.settings.Layout.ProjectFile
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", level, key, f.Message)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if problems > 0 {
				return fmt.Errorf("%s has %d problem(s)", w.settings.Layout.ProjectFile, problems)
			}
			fmt.Fprintf(out, "%s is valid\n", w.settings.Layout.ProjectFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&listSchemas, "list-schemas", false, "list the schema names and exit")

	return cmd
}

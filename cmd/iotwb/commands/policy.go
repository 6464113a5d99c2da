package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/policy"
)

func newPolicyCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "List and toggle the policies checked before provision and deploy",
		Long: `Show the policies that gate provision and deploy items, and turn them on or off
for the current project.

Built-in policies ship with iotwb. Project policies are the .rego and .json files
under .iotworkbench/policies. Disabled policy names are stored in the project
descriptor under "disabledPolicies".`,
		Example: `  # List every policy with its state
  iotwb policy list

  # Stop warning about component names in this project
  iotwb policy disable component-naming`,
	}

	cmd.AddCommand(newPolicyListCommand(opts))
	cmd.AddCommand(newPolicyToggleCommand(opts, "enable", false))
	cmd.AddCommand(newPolicyToggleCommand(opts, "disable", true))

	return cmd
}

func newPolicyListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and project policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tSOURCE\tDESCRIPTION")
			for _, p := range w.policies.ListPolicies() {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", p.Name, p.Severity, p.Enabled, p.Source(), p.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, s := range w.project.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s: %v\n", s.Path, s.Err)
			}
			return nil
		},
	}
}

func newPolicyToggleCommand(opts *globalOptions, verb string, disable bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <name>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a policy for this project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			name := args[0]
			if _, err := w.policies.GetPolicy(name); err != nil {
				return err
			}
			if err := policy.SetPolicyDisabled(w.root, w.settings.Layout, name, disable); err != nil {
				return err
			}

			if disable {
				err = w.policies.DisablePolicy(name)
			} else {
				err = w.policies.EnablePolicy(name)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Policy %s %sd\n", name, verb)
			return nil
		},
	}
}

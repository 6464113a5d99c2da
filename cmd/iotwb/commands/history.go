package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iotworkbench/iotwb/pkg/stores"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		limit      int
		all        bool
		events     string
		jsonOutput bool
		pruneAge   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently run commands",
		Long: `Show the operation journal: the commands run against the project, their
results and errors. The journal lives in ~/.iotwb/journal.db unless the
journal setting moves or disables it.`,
		Example: `  # Last 10 operations of the current project
  iotwb history

  # Operations of every project, as JSON
  iotwb history --all --json

  # Events recorded by one operation
  iotwb history --events 5f0c...

  # Delete entries older than 30 days
  iotwb history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkbench(cmd, opts)
			if err != nil {
				return err
			}
			defer w.close(cmd.Context())

			if w.journal == nil {
				return fmt.Errorf("operation journal is disabled")
			}
			ctx := cmd.Context()

			if pruneAge > 0 {
				n, err := w.journal.Prune(ctx, pruneAge)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d operations\n", n)
				return nil
			}

			if events != "" {
				list, err := w.store.GetEvents(ctx, events, nil, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, list)
				}
				return printEvents(cmd, list)
			}

			root := w.root
			if all {
				root = ""
			}
			ops, err := w.journal.History(ctx, root, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, ops)
			}
			return printOperations(cmd, ops)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of entries")
	cmd.Flags().BoolVar(&all, "all", false, "include every project")
	cmd.Flags().StringVar(&events, "events", "", "show the events of an operation ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().DurationVar(&pruneAge, "prune", 0, "delete operations older than this age")

	return cmd
}

func printOperations(cmd *cobra.Command, ops []*stores.Operation) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tCOMMAND\tRESULT\tDURATION\tERROR")
	for _, op := range ops {
		errMsg := ""
		if op.ErrorMessage != nil {
			errMsg = *op.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.ID,
			op.StartedAt.Local().Format(time.DateTime),
			op.Command,
			op.Result,
			op.Duration().Round(time.Millisecond),
			errMsg,
		)
	}
	return tw.Flush()
}

func printEvents(cmd *cobra.Command, events []*stores.OperationEvent) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tMESSAGE")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.TimeOnly), e.Level, e.Type, e.Message)
	}
	return tw.Flush()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

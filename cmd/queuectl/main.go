package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/lead-dispatch/internal/infra/http/handlers"
)

type options struct {
	url     string
	token   string
	timeout time.Duration
	asJSON  bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "queuectl",
		Short:        "Operate the lead retry queue",
		Long:         "queuectl inspects, drains and purges the lead retry queue through the admin API",
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.url, "url", envOr("QUEUECTL_URL", "http://localhost:8080"), "Base URL of the lead dispatch API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("QUEUECTL_TOKEN"), "Admin bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(
		statsCmd(opts),
		listCmd(opts),
		actionCmd(opts, "process", handlers.ActionProcess, "Drain the queue now", cobra.NoArgs),
		actionCmd(opts, "remove <lead-id>", handlers.ActionRemove, "Remove one entry", cobra.ExactArgs(1)),
		actionCmd(opts, "clear-maxed", handlers.ActionClearMaxed, "Purge dead-letter entries that hit the attempt cap", cobra.NoArgs),
		actionCmd(opts, "clear-all", handlers.ActionClearAll, "Discard every entry, pending and dead", cobra.NoArgs),
	)
	return rootCmd
}

func statsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAdminClient(opts.url, opts.token, opts.timeout)
			resp, err := client.status(cmd.Context(), false)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), resp.Stats)
			}
			s := resp.Stats
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d pending=%d exhausted=%d in_flight=%d oldest_pending=%s\n",
				s.Total, s.Pending, s.Exhausted, s.InFlight,
				time.Duration(s.OldestPendingAge*float64(time.Second)).Round(time.Second))
			return nil
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending and dead-letter entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAdminClient(opts.url, opts.token, opts.timeout)
			resp, err := client.status(cmd.Context(), true)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tSINK\tLEAD\tATTEMPTS\tLAST ATTEMPT\tERROR")
			for _, l := range resp.Leads {
				printRow(tw, "pending", l)
			}
			for _, l := range resp.Exhausted {
				printRow(tw, l.Reason, l)
			}
			return tw.Flush()
		},
	}
}

func printRow(w io.Writer, state string, l handlers.QueuedLeadView) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
		l.ID, state, l.TargetSinkID, l.LeadName, l.Attempts, l.MaxAttempts,
		l.LastAttempt.Format(time.RFC3339), l.Error)
}

func actionCmd(opts *options, use, action, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			var leadID string
			if len(args) > 0 {
				leadID = args[0]
			}

			client := newAdminClient(opts.url, opts.token, opts.timeout)
			resp, err := client.action(cmd.Context(), action, leadID)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

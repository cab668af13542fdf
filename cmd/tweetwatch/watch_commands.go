package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"TweetWatch/internal/domain"
)

// entityIDArg requires exactly one valid watch id.
var entityIDArg = cobra.MatchAll(cobra.ExactArgs(1), func(_ *cobra.Command, args []string) error {
	return domain.ValidateEntityID(args[0])
})

func newStartCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start periodic processing for a watch",
		Args:  entityIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newDaemonClient(opts.server).start(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watch %s started\n", args[0])
			return nil
		},
	}
}

func newConfigureCommand(opts *rootOptions) *cobra.Command {
	var account, query string

	cmd := &cobra.Command{
		Use:   "configure <id>",
		Short: "Set the account and search query of a watch",
		Args:  entityIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := domain.WatchQuery{Account: account, Query: query}
			if err := newDaemonClient(opts.server).configure(cmd.Context(), args[0], q); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watch %s now follows @%s\n", args[0], account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account whose tweets are fetched")
	cmd.Flags().StringVar(&query, "query", "", "Additional search terms")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the latest enriched tweets of a watch",
		Args:  entityIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := newDaemonClient(opts.server).state(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, batch)
			}
			renderBatch(cmd, batch)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON state")
	return cmd
}

func newReminderCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reminder <id>",
		Short: "Show the registered reminder of a watch",
		Args:  entityIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := newDaemonClient(opts.server).reminder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, view)
		},
	}
}

func renderBatch(cmd *cobra.Command, batch domain.EnrichedBatch) {
	out := cmd.OutOrStdout()
	if batch.FetchedAt.IsZero() {
		fmt.Fprintf(out, "Watch %s (@%s) has not fetched yet\n", batch.EntityID, batch.Account)
		return
	}

	fmt.Fprintf(out, "Watch %s (@%s) fetched %s, %d tweets, %d unscored\n",
		batch.EntityID, batch.Account, batch.FetchedAt.Local().Format(time.RFC3339), len(batch.Tweets), batch.Degraded())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tTEXT")
	for _, t := range batch.Tweets {
		score := fmt.Sprintf("%.2f", t.Sentiment)
		if !t.Scored {
			score += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, score, truncate(t.Text, 80))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/history"
)

var (
	historyLimit  int
	historyFailed bool
	historyPrune  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show past installs, updates and removals",
	Long: `Show the operation journal, newest first.

Examples:
  ashpm history
  ashpm history addon/distance
  ashpm history --failed
  ashpm history --prune 2160h     # forget entries older than 90 days`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completePackageIDs,
	RunE:              runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed operations")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete entries older than this")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.journal == nil {
			return fmt.Errorf("history is unavailable")
		}
		out := cmd.OutOrStdout()
		if historyPrune > 0 {
			n, err := a.journal.Prune(ctx, now().Add(-historyPrune))
			if err != nil {
				return err
			}
			printOK(out, fmt.Sprintf("Pruned %d entries", n))
			return nil
		}

		q := history.Query{Limit: historyLimit, FailedOnly: historyFailed}
		if len(args) == 1 {
			q.PackageID = args[0]
		}
		entries, err := a.journal.List(ctx, q)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No history")
			return nil
		}
		printHistory(out, entries)
		return nil
	})
}

func printHistory(out io.Writer, entries []history.Entry) {
	for _, e := range entries {
		status := okColor.Sprint("ok")
		switch {
		case e.Failed():
			status = errColor.Sprint("failed")
		case e.Op == "update" && !e.Changed:
			status = faintColor.Sprint("unchanged")
		}
		line := fmt.Sprintf("%s  %-7s %-28s %s", e.Started.Local().Format("2006-01-02 15:04"), e.Op, e.PackageID, status)
		if e.Ref != "" {
			line += " " + faintColor.Sprint(e.Ref)
		}
		fmt.Fprintln(out, line)
		if e.Failed() {
			fmt.Fprintln(out, faintColor.Sprint("    "+e.Error))
		}
	}
}

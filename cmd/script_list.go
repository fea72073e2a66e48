package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var scriptListKind string

var scriptListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List script entries in load order",
	Args:    cobra.NoArgs,
	RunE:    runScriptList,
}

func init() {
	scriptListCmd.Flags().StringVarP(&scriptListKind, "kind", "k", "", "Only plugin, addon, bind, alias or config entries")
	scriptCmd.AddCommand(scriptListCmd)
}

func runScriptList(cmd *cobra.Command, args []string) error {
	var kind script.Kind
	if scriptListKind != "" {
		k, ok := script.ParseKind(scriptListKind)
		if !ok {
			return fmt.Errorf("unknown kind %q", scriptListKind)
		}
		kind = k
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		store := a.scriptStore(scriptName)
		s, err := store.Load()
		if err != nil {
			return err
		}
		warnings := append(s.Warnings(), s.MarkOrphans(a.reg)...)

		fmt.Fprintln(out, faintColor.Sprint(store.Path()))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tKIND\tENTRY\tLINE")
		for _, e := range s.Entries() {
			if kind != "" && e.Kind != kind {
				continue
			}
			text := e.Target
			if e.Args != "" {
				text += " " + e.Args
			}
			switch {
			case !e.Enabled:
				text = faintColor.Sprint(text + " (disabled)")
			case e.Orphaned:
				text = warnColor.Sprint(text + " (not installed)")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Index+1, e.Kind, text, e.Line)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n/wait %d\n", s.WaitSeconds())
		printWarnings(out, warnings)
		return nil
	})
}

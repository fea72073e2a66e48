package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/registry"
)

var listType string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed packages",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "Only addons or plugins")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	t, err := componentTypeFlag(listType)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		var pkgs []registry.Package
		for _, p := range a.reg.All() {
			if t == "" || p.ComponentType == t {
				pkgs = append(pkgs, p)
			}
		}
		if len(pkgs) == 0 {
			fmt.Fprintln(out, "No packages installed")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREF\tSOURCE\tUPDATED")
		for _, p := range pkgs {
			id := p.ID
			if p.Status == registry.StatusRemovalPending {
				id += " " + warnColor.Sprint("(removal pending)")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, p.RefLabel(), p.SourceURL, p.LastUpdatedAt.Local().Format("2006-01-02"))
		}
		return w.Flush()
	})
}

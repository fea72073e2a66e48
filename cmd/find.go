package cmd

import (
	"context"
	"fmt"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/registry"
)

var findCmd = &cobra.Command{
	Use:     "find <query>",
	Aliases: []string{"search"},
	Short:   "Fuzzy search installed packages by id, name or source",
	Args:    cobra.ExactArgs(1),
	RunE:    runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		matches := searchPackages(a.reg.All(), args[0])
		if len(matches) == 0 {
			fmt.Fprintf(out, "No packages match %q\n", args[0])
			return nil
		}
		for _, p := range matches {
			fmt.Fprintf(out, "%-30s %s\n", idColor.Sprint(p.ID), faintColor.Sprint(p.SourceURL))
		}
		return nil
	})
}

type packageSource []registry.Package

func (s packageSource) String(i int) string { return s[i].ID + " " + s[i].SourceURL }
func (s packageSource) Len() int            { return len(s) }

// searchPackages returns the packages matching query, best first.
func searchPackages(pkgs []registry.Package, query string) []registry.Package {
	matches := fuzzy.FindFrom(query, packageSource(pkgs))
	out := make([]registry.Package, 0, len(matches))
	for _, m := range matches {
		out = append(out, pkgs[m.Index])
	}
	return out
}

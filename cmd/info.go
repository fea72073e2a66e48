package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/fileutil"
	"github.com/samhoang/ashpm/internal/history"
)

var infoCmd = &cobra.Command{
	Use:               "info <id>",
	Aliases:           []string{"show"},
	Short:             "Show details of an installed package",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completePackageIDs,
	RunE:              runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		pkg, err := packageOrHint(a, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", idColor.Sprint(pkg.ID))
		fmt.Fprintf(w, "Name:\t%s\n", pkg.Name)
		fmt.Fprintf(w, "Type:\t%s\n", pkg.ComponentType)
		fmt.Fprintf(w, "Source:\t%s (%s)\n", pkg.SourceURL, pkg.SourceKind)
		fmt.Fprintf(w, "Ref:\t%s\n", pkg.RefLabel())
		if pkg.Locator != "" {
			fmt.Fprintf(w, "Locator:\t%s\n", pkg.Locator)
		}
		if pkg.Checksum != "" {
			fmt.Fprintf(w, "SHA-256:\t%s\n", pkg.Checksum)
		}
		fmt.Fprintf(w, "Path:\t%s\n", pkg.InstallPath)
		if files, size, ok := treeSize(pkg.InstallPath); ok {
			fmt.Fprintf(w, "Files:\t%d (%s)\n", files, humanSize(size))
		}
		if len(pkg.Placed) > 0 {
			fmt.Fprintf(w, "Also placed:\t%s\n", strings.Join(pkg.Placed, ", "))
		}
		fmt.Fprintf(w, "Status:\t%s\n", pkg.Status)
		fmt.Fprintf(w, "Installed:\t%s\n", pkg.InstalledAt.Local().Format(time.DateTime))
		fmt.Fprintf(w, "Updated:\t%s\n", pkg.LastUpdatedAt.Local().Format(time.DateTime))

		s, err := a.scriptStore("").Load()
		if err == nil {
			state := "not in script"
			if e, ok := s.Find(loadKind(pkg.ComponentType), pkg.Name); ok {
				state = fmt.Sprintf("line %d", e.Line)
				if !e.Enabled {
					state += " (disabled)"
				}
			}
			fmt.Fprintf(w, "Script:\t%s\n", state)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if a.journal != nil {
			entries, err := a.journal.List(ctx, history.Query{PackageID: pkg.ID, Limit: 5})
			if err == nil && len(entries) > 0 {
				fmt.Fprintln(out, "\nRecent operations:")
				printHistory(out, entries)
			}
		}
		return nil
	})
}

// treeSize counts the files under dir. The trailing separator makes a linked
// package report its target's contents.
func treeSize(dir string) (files int, size int64, ok bool) {
	listing, err := fileutil.Listing(dir + string(os.PathSeparator))
	if err != nil || len(listing) == 0 {
		return 0, 0, false
	}
	for _, n := range listing {
		if n >= 0 {
			files++
			size += n
		}
	}
	return files, size, true
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

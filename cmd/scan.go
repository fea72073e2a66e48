package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/inventory"
)

var scanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Register addons and plugins already in the Ashita root",
	Long: `Walk the addons and plugins directories and record everything that is not
yet in the registry. Git checkouts keep their origin and can be updated;
other directories are recorded with a file URL. Stock plugins shipped as
bare .dll files are listed but not managed.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanDryRun, "dry-run", "n", false, "Only list what would be registered")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		found, err := inventory.NewScanner().Scan(a.paths.Root)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(out, "No addons or plugins found")
			return nil
		}

		if scanDryRun {
			for _, f := range found {
				state := "new"
				switch {
				case a.reg.Has(f.ID()):
					state = "registered"
				case !f.IsDir:
					state = "bare dll, not managed"
				}
				fmt.Fprintf(out, "  %-30s %s\n", f.ID(), faintColor.Sprint(state))
			}
			return nil
		}

		res, err := inventory.Seed(a.reg, found, now())
		for _, id := range res.Added {
			printOK(out, "Registered "+idColor.Sprint(id))
		}
		fmt.Fprintf(out, "%d registered, %d skipped\n", len(res.Added), len(res.Skipped))
		return err
	})
}

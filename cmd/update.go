package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/picker"
	"github.com/samhoang/ashpm/internal/source"
)

var (
	updateAll    bool
	updateRef    string
	updateLatest bool
	updateForce  bool
	updatePick   bool
)

var updateCmd = &cobra.Command{
	Use:     "update [id...]",
	Aliases: []string{"up", "upgrade"},
	Short:   "Update installed packages",
	Long: `Update packages to the newest commit or release of the ref they were
installed from. Packages whose source has not moved are left alone.

Examples:
  ashpm update addon/distance
  ashpm update --all
  ashpm update addon/distance --ref dev       # switch branch
  ashpm update plugin/thirdparty --latest     # newest release
  ashpm update --pick                         # choose from a list`,
	ValidArgsFunction: completePackageIDs,
	RunE:              runUpdate,
}

func init() {
	updateCmd.Flags().BoolVarP(&updateAll, "all", "a", false, "Update every installed package")
	updateCmd.Flags().StringVarP(&updateRef, "ref", "r", "", "Switch to this ref")
	updateCmd.Flags().BoolVar(&updateLatest, "latest", false, "Switch to the default branch or newest release")
	updateCmd.Flags().BoolVarP(&updateForce, "force", "f", false, "Reinstall even when nothing changed")
	updateCmd.Flags().BoolVarP(&updatePick, "pick", "p", false, "Choose packages interactively")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	opts := engine.UpdateOptions{Ref: updateRef, Latest: updateLatest, Force: updateForce}
	if opts.Ref != "" && (updateAll || len(args) != 1) {
		return fmt.Errorf("--ref needs exactly one package id")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		if updateAll {
			results, err := a.engine.UpdateAll(ctx, opts)
			printUpdateResults(out, results)
			return err
		}

		ids := args
		if updatePick || len(ids) == 0 {
			if !interactive() {
				return fmt.Errorf("give package ids or --all")
			}
			var items []picker.Item
			for _, p := range a.reg.All() {
				items = append(items, picker.Item{ID: p.ID, Label: p.ID, Detail: p.RefLabel()})
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "Nothing installed")
				return nil
			}
			picked, err := chooser.ChooseMany("Select packages to update", items)
			if err != nil {
				return err
			}
			ids = picked
		}

		var results []engine.UpdateResult
		var errs []error
		for _, id := range ids {
			res, err := a.engine.Update(ctx, id, opts)
			if res == nil {
				res = &engine.UpdateResult{ID: id}
			}
			res.Err = err
			results = append(results, *res)
			errs = append(errs, err)
		}
		printUpdateResults(out, results)
		return errors.Join(errs...)
	})
}

func printUpdateResults(out io.Writer, results []engine.UpdateResult) {
	updated := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%s %s: %v\n", errColor.Sprint("✗"), r.ID, r.Err)
		case r.Changed:
			updated++
			printOK(out, fmt.Sprintf("%s %s -> %s", idColor.Sprint(r.ID), r.Previous.RefLabel(), r.Package.RefLabel()))
		case r.Package.SourceKind == source.LocalLink:
			fmt.Fprintf(out, "  %s %s\n", r.ID, faintColor.Sprint("linked, skipped"))
		default:
			fmt.Fprintf(out, "  %s %s\n", r.ID, faintColor.Sprint("up to date"))
		}
	}
	if len(results) > 1 {
		fmt.Fprintf(out, "\n%d of %d updated\n", updated, len(results))
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/registry"
)

var removeDropScript bool

var removeCmd = &cobra.Command{
	Use:     "remove <id>...",
	Aliases: []string{"rm", "uninstall"},
	Short:   "Remove installed packages",
	Long: `Delete a package's directory and its registry record. Load lines in the
script are kept and reported as orphaned; pass --drop-script to delete them
too. When the directory cannot be deleted (files in use while the game runs)
the package is marked removal pending; run remove again later to finish.

Examples:
  ashpm remove addon/distance
  ashpm remove plugin/thirdparty --drop-script`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completePackageIDs,
	RunE:              runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeDropScript, "drop-script", false, "Also delete the package's load lines from the script")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		var errs []error
		for _, id := range args {
			pkg, err := a.reg.Get(id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := a.engine.Remove(ctx, id); err != nil {
				errs = append(errs, err)
				continue
			}
			printOK(out, fmt.Sprintf("Removed %s", idColor.Sprint(id)))
			syncScript := reportOrphans
			if removeDropScript {
				syncScript = dropFromScript
			}
			if err := syncScript(a, pkg, out); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// packageOrHint looks up id and suggests close matches when it is unknown.
func packageOrHint(a *app, id string) (registry.Package, error) {
	pkg, err := a.reg.Get(id)
	if err == nil || !errors.Is(err, registry.ErrNotFound) {
		return pkg, err
	}
	if matches := searchPackages(a.reg.All(), id); len(matches) > 0 {
		return pkg, fmt.Errorf("%w (did you mean %s?)", err, matches[0].ID)
	}
	return pkg, err
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var scriptDiffDefault bool

var scriptDiffCmd = &cobra.Command{
	Use:   "diff [other]",
	Short: "Compare the script with another script or the default layout",
	Long: `Show a unified diff from the selected script to another script in the
scripts directory, or to the stock layout with --default.

Examples:
  ashpm script diff mule.txt
  ashpm script diff --default`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeScriptNames,
	RunE:              runScriptDiff,
}

func init() {
	scriptDiffCmd.Flags().BoolVar(&scriptDiffDefault, "default", false, "Compare with the stock default script")
	scriptCmd.AddCommand(scriptDiffCmd)
}

func runScriptDiff(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !scriptDiffDefault {
		return fmt.Errorf("name a script to compare with, or pass --default")
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		store := a.scriptStore(scriptName)
		s, err := store.Load()
		if err != nil {
			return err
		}

		otherName := "default layout"
		other := script.NewDefault()
		if len(args) == 1 {
			otherStore := script.NewStore(scriptPathFor(a.paths, args[0]))
			if other, err = otherStore.Load(); err != nil {
				return err
			}
			otherName = otherStore.Path()
		}
		printDiff(cmd.OutOrStdout(), store.Path(), otherName, s.String(), other.String())
		return nil
	})
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var scriptWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check the script whenever it is saved",
	Long: `Watch the script file and report parse problems and addons or plugins that
are loaded but not installed each time it changes. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runScriptWatch,
}

func init() {
	scriptCmd.AddCommand(scriptWatchCmd)
}

func runScriptWatch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		path := a.scriptStore(scriptName).Path()
		fmt.Fprintf(out, "Watching %s\n", path)

		return script.Watch(ctx, path, a.reg, func(s *script.Script, warnings []error) {
			// another process may have installed or removed packages meanwhile
			if err := a.reg.Reload(); err == nil {
				warnings = append(s.Warnings(), s.MarkOrphans(a.reg)...)
			}
			if len(warnings) == 0 {
				printOK(out, fmt.Sprintf("%d entries, no problems", len(s.Entries())))
				return
			}
			printWarnings(out, warnings)
		})
	})
}

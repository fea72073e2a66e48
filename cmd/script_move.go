package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var scriptMoveCmd = &cobra.Command{
	Use:   "move <entry> <position>",
	Short: "Change where an entry loads among entries of its kind",
	Long: `Move an entry to a 1-based position among the entries of the same kind.
Other kinds keep their lines.

Examples:
  ashpm script move distance 1       # load distance first of all addons
  ashpm script move 3 2`,
	Args: cobra.ExactArgs(2),
	RunE: runScriptMove,
}

func init() {
	scriptCmd.AddCommand(scriptMoveCmd)
}

func runScriptMove(cmd *cobra.Command, args []string) error {
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("position must be a number: %q", args[1])
	}
	return editScript(cmd, func(s *script.Script) error {
		e, err := resolveEntry(s, args[0])
		if err != nil {
			return err
		}
		return s.Reorder(e.Kind, e.Order, to-1)
	})
}

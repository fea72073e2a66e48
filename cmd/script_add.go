package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var (
	scriptAddArgs     string
	scriptAddDisabled bool
)

var scriptAddCmd = &cobra.Command{
	Use:   "add <kind> <target>...",
	Short: "Add an entry to its section of the script",
	Long: `Add a plugin, addon, bind, alias or config entry. It goes after the last
entry of the same kind, or into its section of the default layout.

Examples:
  ashpm script add addon distance
  ashpm script add plugin thirdparty --disabled
  ashpm script add bind ^F1 /ma "Cure" <stpc>
  ashpm script add config /fps 1`,
	Args: cobra.MinimumNArgs(2),
	RunE: runScriptAdd,
}

func init() {
	scriptAddCmd.Flags().StringVar(&scriptAddArgs, "args", "", "Arguments passed to the addon or plugin")
	scriptAddCmd.Flags().BoolVar(&scriptAddDisabled, "disabled", false, "Add the entry commented out")
	scriptCmd.AddCommand(scriptAddCmd)
}

func runScriptAdd(cmd *cobra.Command, args []string) error {
	kind, ok := script.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown kind %q (want plugin, addon, bind, alias or config)", args[0])
	}
	target := strings.Join(args[1:], " ")
	return editScript(cmd, func(s *script.Script) error {
		_, err := s.AddEntry(kind, target, scriptAddArgs, !scriptAddDisabled)
		return err
	})
}

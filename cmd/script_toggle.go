package cmd

import (
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var scriptEnableCmd = &cobra.Command{
	Use:   "enable <entry>...",
	Short: "Uncomment script entries",
	Long: `Remove the '#' in front of entries so they run at start.

Examples:
  ashpm script enable distance
  ashpm script enable 4 plugin/thirdparty`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args, true)
	},
}

var scriptDisableCmd = &cobra.Command{
	Use:   "disable <entry>...",
	Short: "Comment out script entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args, false)
	},
}

func init() {
	scriptCmd.AddCommand(scriptEnableCmd)
	scriptCmd.AddCommand(scriptDisableCmd)
}

func setEnabled(cmd *cobra.Command, args []string, enabled bool) error {
	return editScript(cmd, func(s *script.Script) error {
		for _, arg := range args {
			e, err := resolveEntry(s, arg)
			if err != nil {
				return err
			}
			if err := s.SetEnabled(e.Index, enabled); err != nil {
				return err
			}
		}
		return nil
	})
}

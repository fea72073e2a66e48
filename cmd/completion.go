package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <powershell|bash|zsh|fish>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for ashpm. Package ids and script names complete
from the current registry and scripts directory.

PowerShell (Windows, where most Ashita installs live):
  PS> ashpm completion powershell | Out-String | Invoke-Expression
  Add that line to $PROFILE to keep it.

Bash (Git Bash, WSL, Linux with Wine):
  $ source <(ashpm completion bash)

Zsh:
  $ ashpm completion zsh > "${fpath[1]}/_ashpm"

Fish:
  $ ashpm completion fish > ~/.config/fish/completions/ashpm.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"powershell", "bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		default:
			return rootCmd.GenFishCompletion(out, true)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

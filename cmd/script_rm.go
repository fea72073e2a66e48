package cmd

import (
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/script"
)

var scriptRmCmd = &cobra.Command{
	Use:     "rm <entry>",
	Aliases: []string{"remove"},
	Short:   "Delete a script entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editScript(cmd, func(s *script.Script) error {
			e, err := resolveEntry(s, args[0])
			if err != nil {
				return err
			}
			return s.RemoveEntry(e.Index)
		})
	},
}

func init() {
	scriptCmd.AddCommand(scriptRmCmd)
}

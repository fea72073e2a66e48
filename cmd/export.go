package cmd

import (
	"bytes"
	"context"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/fileutil"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the installed package set as a YAML manifest",
	Long: `Write every installed package with its source and ref as YAML, to stdout or
a file. 'ashpm import' reinstalls the set on another machine.

Examples:
  ashpm export > packages.yaml
  ashpm export -o ~/backup/ashita-packages.yaml`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if exportOutput == "" {
			return a.reg.Export(cmd.OutOrStdout(), now())
		}
		var buf bytes.Buffer
		if err := a.reg.Export(&buf, now()); err != nil {
			return err
		}
		if err := fileutil.WriteFileAtomic(exportOutput, buf.Bytes(), 0o644); err != nil {
			return err
		}
		printOK(cmd.ErrOrStderr(), "Wrote "+exportOutput)
		return nil
	})
}

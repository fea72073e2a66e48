package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

var (
	importDryRun   bool
	importNoScript bool
)

var importCmd = &cobra.Command{
	Use:   "import <manifest.yaml|->",
	Short: "Install every package listed in a manifest",
	Long: `Install the packages of a manifest written by 'ashpm export'. Each entry is
installed from its source at its recorded ref; packages already installed
from the same source are skipped.

Examples:
  ashpm import packages.yaml
  ashpm import - < packages.yaml
  ashpm import packages.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importDryRun, "dry-run", "n", false, "Only list what would be installed")
	importCmd.Flags().BoolVar(&importNoScript, "no-script", false, "Do not add load lines to the script")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	manifest, err := registry.ReadManifest(in)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		var errs []error
		installed := 0
		for _, entry := range manifest.Packages {
			if _, ok := a.reg.FindBySource(entry.SourceURL, entry.ComponentType); ok {
				fmt.Fprintf(out, "  %-30s %s\n", entry.ID, faintColor.Sprint("already installed"))
				continue
			}
			if entry.SourceKind == source.LocalLink {
				fmt.Fprintf(out, "  %-30s %s\n", entry.ID, warnColor.Sprint("linked on the exporting machine, skipped"))
				continue
			}
			if importDryRun {
				fmt.Fprintf(out, "  %-30s %s @ %s\n", entry.ID, entry.SourceURL, entry.RefChoice())
				continue
			}

			req := engine.Request{
				URL:  entry.SourceURL,
				Type: detect.Type(entry.ComponentType),
				Ref:  entry.RefChoice(),
			}
			if entry.SourceKind == source.ReleaseArchive {
				req.Method = engine.MethodRelease
			}
			// the recorded name settles which file is the entrypoint
			if _, name, ok := registry.SplitID(entry.ID); ok {
				req.Entrypoint = name
			}
			pkg, err := a.engine.Install(ctx, req)
			if err != nil {
				fmt.Fprintf(out, "%s %s: %v\n", errColor.Sprint("✗"), entry.ID, err)
				errs = append(errs, err)
				continue
			}
			installed++
			printOK(out, fmt.Sprintf("Installed %s %s", idColor.Sprint(pkg.ID), pkg.RefLabel()))
			if !importNoScript {
				if err := addToScript(a, *pkg, out); err != nil {
					errs = append(errs, err)
				}
			}
		}
		if !importDryRun {
			fmt.Fprintf(out, "\n%d of %d installed\n", installed, len(manifest.Packages))
		}
		return errors.Join(errs...)
	})
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

var refsMethod string

var refsCmd = &cobra.Command{
	Use:   "refs <url|id>",
	Short: "List the branches, tags or releases of a source",
	Long: `List the refs that install --ref and update --ref accept. Takes a source
URL or the id of an installed package.

Examples:
  ashpm refs https://github.com/ThornyFFXI/distance
  ashpm refs addon/distance`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completePackageIDs,
	RunE:              runRefs,
}

func init() {
	refsCmd.Flags().StringVarP(&refsMethod, "method", "m", "", "auto, clone or release")
	rootCmd.AddCommand(refsCmd)
}

func runRefs(cmd *cobra.Command, args []string) error {
	method, err := engine.ParseMethod(refsMethod)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		url := args[0]
		current := ""
		if _, _, ok := registry.SplitID(url); ok {
			pkg, err := packageOrHint(a, url)
			if err != nil {
				return err
			}
			if pkg.SourceKind == source.LocalLink {
				return fmt.Errorf("%s is linked to %s and has no refs", pkg.ID, pkg.SourceURL)
			}
			url, current = pkg.SourceURL, pkg.InstalledRef
			if method == engine.MethodAuto && pkg.SourceKind == source.ReleaseArchive {
				method = engine.MethodRelease
			}
		}

		prop, err := a.engine.Propose(ctx, engine.Request{URL: url, Method: method})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", prop.Location.URL, prop.Location.Kind)
		for _, r := range prop.Refs {
			marker := "  "
			if current != "" && r.Name == current {
				marker = okColor.Sprint("* ")
			}
			fmt.Fprintf(out, "%s%-30s %s\n", marker, r.ID(), faintColor.Sprint(refDetail(r)))
		}
		return nil
	})
}

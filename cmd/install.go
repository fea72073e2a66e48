package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/picker"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

var (
	installType       string
	installMethod     string
	installRef        string
	installEntrypoint string
	installForce      bool
	installNoScript   bool
)

var installCmd = &cobra.Command{
	Use:     "install <url>",
	Aliases: []string{"i", "add"},
	Short:   "Install an addon or plugin from a repository or release",
	Long: `Install an addon or plugin from a git repository, a GitHub releases page or a
direct archive URL. The type is detected from the fetched files unless --type
is given. When the source has several refs you are asked to pick one, or
must pass --ref when not running in a terminal.

The installed package is added to the script so it loads on the next start.

Examples:
  ashpm install https://github.com/ThornyFFXI/distance
  ashpm install github.com/ThornyFFXI/thirdparty --type plugin --ref v1.2
  ashpm install https://github.com/owner/addon/releases --ref v3#addon.zip
  ashpm install https://example.com/tool.zip --no-script`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installType, "type", "t", "", "addon or plugin (default: detect)")
	installCmd.Flags().StringVarP(&installMethod, "method", "m", "", "auto, clone or release")
	installCmd.Flags().StringVarP(&installRef, "ref", "r", "", "Branch, tag or release to install")
	installCmd.Flags().StringVar(&installEntrypoint, "entrypoint", "", "Main .lua file when the addon name cannot be inferred")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Replace an unmanaged directory at the destination")
	installCmd.Flags().BoolVar(&installNoScript, "no-script", false, "Do not add a load line to the script")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	t, err := detect.ParseType(installType)
	if err != nil {
		return err
	}
	method, err := engine.ParseMethod(installMethod)
	if err != nil {
		return err
	}
	req := engine.Request{
		URL:        args[0],
		Type:       t,
		Method:     method,
		Ref:        installRef,
		Entrypoint: installEntrypoint,
		Force:      installForce,
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		pkg, err := install(ctx, a, req, out)
		if err != nil {
			return err
		}
		printOK(out, fmt.Sprintf("Installed %s %s into %s", idColor.Sprint(pkg.ID), pkg.RefLabel(), pkg.InstallPath))

		if !installNoScript {
			return addToScript(a, *pkg, out)
		}
		return nil
	})
}

// install runs the two install phases, asking for a ref and an entrypoint
// when needed and possible.
func install(ctx context.Context, a *app, req engine.Request, out io.Writer) (*registry.Package, error) {
	if req.Ref == "" && interactive() {
		prop, err := a.engine.Propose(ctx, req)
		if err != nil {
			return nil, err
		}
		if prop.NeedsChoice() {
			current := ""
			if prop.Existing != nil {
				current = prop.Existing.InstalledRef
			}
			if req.Ref, err = chooseRef("Select a ref of "+prop.Location.URL, prop.Refs, current); err != nil {
				return nil, err
			}
		}
	}

	pkg, err := a.engine.Install(ctx, req)

	var entryErr *engine.EntrypointError
	if errors.As(err, &entryErr) && interactive() {
		var items []picker.Item
		for _, c := range entryErr.Candidates {
			items = append(items, picker.Item{ID: c, Label: c})
		}
		if req.Entrypoint, err = chooser.ChooseOne("Which addon or main file should be installed?", items); err != nil {
			return nil, err
		}
		pkg, err = a.engine.Install(ctx, req)
	}

	var refErr *engine.RefChoiceError
	if errors.As(err, &refErr) {
		fmt.Fprintln(out, "Available refs:")
		printRefs(out, refErr.Refs)
	}
	return pkg, err
}

func chooseRef(title string, refs []source.Ref, current string) (string, error) {
	items := make([]picker.Item, 0, len(refs))
	for _, r := range refs {
		item := picker.Item{ID: r.ID(), Label: r.ID(), Selected: r.Name == current}
		switch {
		case r.Default:
			item.Detail = "(default)"
		case r.Kind == source.RefTag:
			item.Detail = "tag"
		}
		items = append(items, item)
	}
	return chooser.ChooseOne(title, items)
}

func printRefs(out io.Writer, refs []source.Ref) {
	for _, r := range refs {
		fmt.Fprintf(out, "  %-30s %s\n", r.ID(), faintColor.Sprint(refDetail(r)))
	}
}

func refDetail(r source.Ref) string {
	detail := string(r.Kind)
	if r.Default {
		detail += ", default"
	}
	if r.Kind == source.RefBranch || r.Kind == source.RefTag {
		if len(r.Locator) >= 7 {
			detail += " @" + r.Locator[:7]
		}
	}
	return detail
}

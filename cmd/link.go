package cmd

import (
	"context"
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/engine"
)

var (
	linkType       string
	linkName       string
	linkEntrypoint string
	linkForce      bool
	linkNoScript   bool
)

var linkCmd = &cobra.Command{
	Use:   "link <dir>",
	Short: "Link a local working copy into the root",
	Long: `Link a local directory into addons/ or plugins/ instead of installing a copy.
Edits to the directory take effect on the next reload in game. update skips
linked packages and remove deletes only the link.

Examples:
  ashpm link ~/src/distance
  ashpm link ./build/out --type plugin --name thirdparty`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().StringVarP(&linkType, "type", "t", "", "addon or plugin (default: detect)")
	linkCmd.Flags().StringVar(&linkName, "name", "", "Package name (default: detected)")
	linkCmd.Flags().StringVar(&linkEntrypoint, "entrypoint", "", "Main .lua file when the addon name cannot be inferred")
	linkCmd.Flags().BoolVarP(&linkForce, "force", "f", false, "Replace an unmanaged directory at the destination")
	linkCmd.Flags().BoolVar(&linkNoScript, "no-script", false, "Do not add a load line to the script")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	t, err := detect.ParseType(linkType)
	if err != nil {
		return err
	}
	path, err := homedir.Expand(args[0])
	if err != nil {
		return err
	}
	req := engine.LinkRequest{Path: path, Type: t, Name: linkName, Entrypoint: linkEntrypoint, Force: linkForce}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		pkg, err := a.engine.Link(ctx, req)
		if err != nil {
			return err
		}
		printOK(out, fmt.Sprintf("Linked %s %s -> %s", idColor.Sprint(pkg.ID), pkg.InstallPath, path))
		if !linkNoScript {
			return addToScript(a, *pkg, out)
		}
		return nil
	})
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var readmeRaw bool

var readmeCmd = &cobra.Command{
	Use:               "readme <id>",
	Short:             "Render an installed package's README",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completePackageIDs,
	RunE:              runReadme,
}

func init() {
	readmeCmd.Flags().BoolVar(&readmeRaw, "raw", false, "Print the markdown without rendering")
	rootCmd.AddCommand(readmeCmd)
}

func runReadme(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		pkg, err := packageOrHint(a, args[0])
		if err != nil {
			return err
		}
		path, err := findReadme(pkg.InstallPath)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if readmeRaw || !interactive() {
			_, err = out.Write(data)
			return err
		}
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		rendered, err := renderer.Render(string(data))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, rendered)
		return err
	})
}

// findReadme returns the README in dir, preferring markdown.
func findReadme(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	best := ""
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.IsDir() || !strings.HasPrefix(name, "readme") {
			continue
		}
		if strings.HasSuffix(name, ".md") {
			return filepath.Join(dir, e.Name()), nil
		}
		if best == "" {
			best = filepath.Join(dir, e.Name())
		}
	}
	if best == "" {
		return "", fmt.Errorf("no README in %s", dir)
	}
	return best, nil
}

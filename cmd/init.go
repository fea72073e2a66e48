package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/script"
)

var initScan bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Point ashpm at an Ashita install",
	Long: `Record the Ashita install root in ashpm.toml, create the addons, plugins
and staging directories, and write the default script when none exists.

Examples:
  ashpm init --root "C:/Games/Ashita"
  ashpm init --root ~/ashita --scan     # also adopt what is already installed`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initScan, "scan", false, "Register addons and plugins already present")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Root == "" {
		return fmt.Errorf("--root is required")
	}
	root, err := homedir.Expand(cfg.Root)
	if err != nil {
		return err
	}
	if root, err = filepath.Abs(root); err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	cfg.Root, paths.Root = root, root
	if err := paths.EnsureLayout(); err != nil {
		return err
	}
	if err := cfg.Save(paths.StateDir); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printOK(out, fmt.Sprintf("Ashita root set to %s", root))

	scriptPath := cfg.ScriptPath()
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		if _, err := script.NewStore(scriptPath).Save(script.NewDefault(), nil); err != nil {
			return err
		}
		printOK(out, fmt.Sprintf("Created %s", scriptPath))
	}

	if initScan {
		return runScan(cmd, nil)
	}
	fmt.Fprintf(out, "\nState directory: %s\n", paths.StateDir)
	fmt.Fprintf(out, "Config:          %s\n", paths.ConfigPath())
	return nil
}

// componentTypeFlag validates a --type value for commands that only accept
// the two concrete types.
func componentTypeFlag(s string) (config.ComponentType, error) {
	if s == "" {
		return "", nil
	}
	t := config.ComponentType(s)
	if len(s) > 1 && s[len(s)-1] == 's' {
		t = config.ComponentType(s[:len(s)-1])
	}
	if !t.Valid() {
		return "", fmt.Errorf("unknown type %q (want addon or plugin)", s)
	}
	return t, nil
}

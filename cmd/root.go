package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/config"
)

var Version = "dev"

var (
	rootFlag    string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "ashpm",
	Short: "Ashita addon and plugin manager",
	Long: `ashpm installs, updates and removes Ashita v4 addons and plugins from git
repositories and release archives, and keeps the load-order script in step
with what is installed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func runRoot(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return cmd.Help()
	}
	cfg, err := config.LoadConfig(paths.StateDir)
	if err == nil && rootFlag != "" {
		cfg.Root = rootFlag
	}
	if err == nil {
		paths.Root = cfg.Root
	}

	if !paths.IsInitialized() {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "ashpm - Ashita addon and plugin manager")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "No Ashita root configured. Get started with:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  ashpm init --root <ashita dir>   Point ashpm at your Ashita install")
		fmt.Fprintln(out, "  ashpm --help                     Show all commands")
		return nil
	}
	return cmd.Help()
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Ashita install root (overrides config and ASHPM_ROOT)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging on stderr")
}

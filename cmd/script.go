package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/script"
)

var (
	scriptName   string
	scriptDryRun bool
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Inspect and edit the Ashita load script",
	Long: `Inspect and edit the script Ashita runs at start (scripts/default.txt unless
configured otherwise). Edits only touch the lines they target; comments,
blank lines and formatting are kept as they are.

Entries are addressed by their number from 'ashpm script list', or by addon
or plugin name.`,
}

func init() {
	scriptCmd.PersistentFlags().StringVarP(&scriptName, "file", "s", "", "Script in the scripts directory (default: configured script)")
	scriptCmd.PersistentFlags().BoolVarP(&scriptDryRun, "dry-run", "n", false, "Show the change as a diff without saving")
	rootCmd.AddCommand(scriptCmd)
}

// editScript applies fn to the selected script and saves it, or prints the
// diff of the change with --dry-run.
func editScript(cmd *cobra.Command, fn func(*script.Script) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()
		store := a.scriptStore(scriptName)

		if scriptDryRun {
			s, err := store.Load()
			if err != nil {
				return err
			}
			before := s.String()
			if err := fn(s); err != nil {
				return err
			}
			printDiff(out, store.Path(), store.Path()+" (new)", before, s.String())
			return nil
		}

		_, res, err := store.Update(a.reg, fn)
		if err != nil {
			return err
		}
		printWarnings(out, res.Warnings)
		return nil
	})
}

func printDiff(out io.Writer, from, to, before, after string) {
	if before == after {
		fmt.Fprintln(out, "No changes")
		return
	}
	diff := udiff.Unified(from, to, before, after)
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(out, idColor.Sprint(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(out, okColor.Sprint(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(out, errColor.Sprint(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(out, faintColor.Sprint(line))
		default:
			fmt.Fprint(out, line)
		}
	}
}

// resolveEntry finds an entry by its 1-based number, a load name, or a
// package id.
func resolveEntry(s *script.Script, arg string) (script.Entry, error) {
	entries := s.Entries()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(entries) {
			return script.Entry{}, &script.ScriptError{Text: arg, Err: script.ErrIndexOutOfRange}
		}
		return entries[n-1], nil
	}
	if t, name, ok := registry.SplitID(arg); ok {
		if e, found := s.Find(loadKind(t), name); found {
			return e, nil
		}
		return script.Entry{}, fmt.Errorf("%s is not in the script", arg)
	}
	for _, kind := range []script.Kind{script.AddonLoad, script.PluginLoad} {
		if e, found := s.Find(kind, arg); found {
			return e, nil
		}
	}
	return script.Entry{}, fmt.Errorf("no addon or plugin %q in the script", arg)
}

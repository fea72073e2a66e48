package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/script"
)

func loadKind(t config.ComponentType) script.Kind {
	if t == config.Plugin {
		return script.PluginLoad
	}
	return script.AddonLoad
}

// addToScript appends a load line for pkg unless the script already has one.
func addToScript(a *app, pkg registry.Package, out io.Writer) error {
	store := a.scriptStore("")
	added := false
	_, res, err := store.Update(a.reg, func(s *script.Script) error {
		if _, ok := s.Find(loadKind(pkg.ComponentType), pkg.Name); ok {
			return nil
		}
		_, err := s.AddEntry(loadKind(pkg.ComponentType), pkg.Name, "", true)
		added = err == nil
		return err
	})
	if err != nil {
		return fmt.Errorf("update script: %w", err)
	}
	if added {
		printOK(out, fmt.Sprintf("Added %s to %s", pkg.Name, store.Path()))
	}
	printWarnings(out, res.Warnings)
	return nil
}

// dropFromScript removes every load line for pkg.
func dropFromScript(a *app, pkg registry.Package, out io.Writer) error {
	store := a.scriptStore("")
	removed := 0
	_, res, err := store.Update(a.reg, func(s *script.Script) error {
		for {
			e, ok := s.Find(loadKind(pkg.ComponentType), pkg.Name)
			if !ok {
				return nil
			}
			if err := s.RemoveEntry(e.Index); err != nil {
				return err
			}
			removed++
		}
	})
	if err != nil {
		return fmt.Errorf("update script: %w", err)
	}
	if removed > 0 {
		printOK(out, fmt.Sprintf("Removed %s from %s", pkg.Name, store.Path()))
	}
	printWarnings(out, res.Warnings)
	return nil
}

// reportOrphans prints the orphan warnings the script now carries for pkg.
// The lines stay; the user decides whether to drop them.
func reportOrphans(a *app, pkg registry.Package, out io.Writer) error {
	s, err := a.scriptStore("").Load()
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	var warnings []error
	for _, w := range s.MarkOrphans(a.reg) {
		var se *script.ScriptError
		if errors.As(w, &se) && se.Text == pkg.ID {
			warnings = append(warnings, w)
		}
	}
	printWarnings(out, warnings)
	return nil
}

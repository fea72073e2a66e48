// Package detect decides whether a fetched source tree holds an Ashita addon
// or plugin by looking at its directory shape. Detection is a pure function of
// an fs.FS so it can run against staging directories and in-memory trees alike.
package detect

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Type is the outcome of detection.
type Type string

const (
	Ambiguous Type = "ambiguous"
	Addon     Type = "addon"
	Plugin    Type = "plugin"
)

// ParseType parses a user supplied type hint. "auto" and "" yield Ambiguous,
// meaning detection should run.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Ambiguous, nil
	case "addon", "addons":
		return Addon, nil
	case "plugin", "plugins":
		return Plugin, nil
	}
	return "", fmt.Errorf("unknown package type %q (want auto, addon or plugin)", s)
}

// Hints steer detection.
type Hints struct {
	RepoName   string // last URL path segment, used to pick among several .lua files
	Forced     Type   // Addon or Plugin skips detection
	Entrypoint string // chosen main file name when the addon name is ambiguous
}

// Detection describes what was found.
type Detection struct {
	Type       Type
	Name       string   // host load name, as spelled in the tree
	Root       string   // slash path within the tree whose contents make up the package
	Candidates []string // main file stems, or addon folders, when the choice is ambiguous
}

// NeedsEntrypoint reports whether an addon was found but its main file could
// not be chosen.
func (d Detection) NeedsEntrypoint() bool {
	return d.Type == Addon && d.Name == ""
}

// Detect returns only the type of the tree.
func Detect(fsys fs.FS) Type {
	return Inspect(fsys, Hints{}).Type
}

// Inspect runs both layouts over the tree. When exactly one matches it wins;
// when both or neither match the result is Ambiguous. A forced type is
// authoritative: its layout is used if present, else the whole tree is taken
// under the repository name.
func Inspect(fsys fs.FS, hints Hints) Detection {
	top := wrapperRoot(fsys)
	addon, isAddon := addonLayout(fsys, top, hints)
	plugin, isPlugin := pluginLayout(fsys, top, hints)

	switch hints.Forced {
	case Addon:
		if isAddon {
			return addon
		}
		return Detection{Type: Addon, Name: hints.RepoName, Root: top}
	case Plugin:
		if isPlugin {
			return plugin
		}
		return Detection{Type: Plugin, Name: hints.RepoName, Root: top}
	}

	switch {
	case isAddon && !isPlugin:
		return addon
	case isPlugin && !isAddon:
		return plugin
	}
	return Detection{Type: Ambiguous, Root: top}
}

// wrapperRoot descends into a lone visible directory when the root holds
// nothing else visible, as produced by archives that wrap everything in
// "<repo>-<version>/".
func wrapperRoot(fsys fs.FS) string {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "."
	}
	var only string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.IsDir() || only != "" {
			return "."
		}
		only = e.Name()
	}
	if only == "" {
		return "."
	}
	return only
}

func addonLayout(fsys fs.FS, top string, hints Hints) (Detection, bool) {
	// addons/<n>/<n>.lua, as in multi-package repositories
	addonsDir := path.Join(top, "addons")
	var nested []string
	for _, d := range visibleDirs(fsys, addonsDir) {
		name := path.Base(d)
		if strings.EqualFold(name, "libs") {
			continue
		}
		if exists(fsys, path.Join(d, name+".lua")) {
			nested = append(nested, d)
		}
	}
	if len(nested) == 1 {
		return Detection{Type: Addon, Name: path.Base(nested[0]), Root: nested[0]}, true
	}
	if len(nested) > 1 {
		repo := strings.ToLower(strings.TrimSuffix(hints.RepoName, ".git"))
		var names []string
		for _, d := range nested {
			names = append(names, path.Base(d))
		}
		for _, want := range []string{stem(hints.Entrypoint), repo} {
			for _, d := range nested {
				if want != "" && strings.EqualFold(path.Base(d), want) {
					return Detection{Type: Addon, Name: path.Base(d), Root: d}, true
				}
			}
		}
		// several addons in one repository: the caller picks one
		return Detection{Type: Addon, Root: addonsDir, Candidates: names}, true
	}

	// main file at the top
	if stems := filesWithExt(fsys, top, ".lua"); len(stems) > 0 {
		d := Detection{Type: Addon, Root: top}
		if name, ok := chooseEntrypoint(stems, hints.Entrypoint); ok {
			d.Name = name
		} else if name, ok := inferAddonName(path.Base(top), stems, hints.RepoName); ok {
			d.Name = name
		} else {
			d.Candidates = stems
		}
		return d, true
	}

	// <n>/<n>.lua
	for _, d := range visibleDirs(fsys, top) {
		name := path.Base(d)
		if exists(fsys, path.Join(d, name+".lua")) {
			return Detection{Type: Addon, Name: name, Root: d}, true
		}
	}
	return Detection{}, false
}

func pluginLayout(fsys fs.FS, top string, hints Hints) (Detection, bool) {
	found := func(dir, name string) (Detection, bool) {
		return Detection{Type: Plugin, Name: name, Root: dir}, true
	}

	pluginsDir := path.Join(top, "plugins")
	if dlls := filesWithExt(fsys, pluginsDir, ".dll"); len(dlls) > 0 {
		name, ok := chooseEntrypoint(dlls, hints.Entrypoint)
		if !ok {
			name = dlls[0]
		}
		return found(pluginsDir, name)
	}

	if dlls := filesWithExt(fsys, top, ".dll"); len(dlls) > 0 {
		return found(top, dlls[0])
	}

	// one or two levels below the top
	for _, d := range visibleDirs(fsys, top) {
		if dlls := filesWithExt(fsys, d, ".dll"); len(dlls) > 0 {
			return found(d, dlls[0])
		}
	}
	return Detection{}, false
}

// inferAddonName picks the main .lua file among several. In order: a file
// named after the repository, a lone file, a file named after the folder, and
// finally the longest substring match of at least three characters against
// the folder or repository name.
func inferAddonName(folder string, stems []string, repoName string) (string, bool) {
	folder = strings.ToLower(folder)
	if folder == "." {
		folder = ""
	}
	repo := strings.ToLower(strings.TrimSuffix(repoName, ".git"))

	if repo != "" {
		for _, s := range stems {
			if strings.ToLower(s) == repo {
				return s, true
			}
		}
	}
	if len(stems) == 1 {
		return stems[0], true
	}
	if folder != "" {
		for _, s := range stems {
			if strings.ToLower(s) == folder {
				return s, true
			}
		}
	}

	best, bestLen := "", 0
	for _, s := range stems {
		lower := strings.ToLower(s)
		for _, other := range []string{folder, repo} {
			if other == "" {
				continue
			}
			n := 0
			switch {
			case strings.Contains(other, lower):
				n = len(lower)
			case strings.Contains(lower, other):
				n = len(other)
			}
			if n > bestLen {
				best, bestLen = s, n
			}
		}
	}
	if bestLen >= 3 {
		return best, true
	}
	return "", false
}

func chooseEntrypoint(stems []string, entrypoint string) (string, bool) {
	if entrypoint == "" {
		return "", false
	}
	want := stem(entrypoint)
	for _, s := range stems {
		if strings.EqualFold(s, want) {
			return s, true
		}
	}
	return "", false
}

func stem(name string) string {
	name = path.Base(name)
	return strings.TrimSuffix(name, path.Ext(name))
}

// visibleDirs lists non-hidden subdirectories of dir as slash paths, sorted.
func visibleDirs(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs
}

// filesWithExt returns the stems of regular files in dir with the given
// extension, compared case-insensitively, sorted.
func filesWithExt(fsys fs.FS, dir, ext string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ext) {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(stems)
	return stems
}

func exists(fsys fs.FS, name string) bool {
	_, err := fs.Stat(fsys, name)
	return err == nil
}

package detect

import (
	"io/fs"
	"path"
	"strings"
)

// Extra is a companion folder shipped next to a package: shared libraries,
// documentation or resources the package reads from the install root.
type Extra struct {
	Src   string // slash path within the tree
	Dest  string // slash path under the install root
	Merge bool   // files join a folder shared with other packages
}

// Extras lists the companion folders of a detected package. Folders inside
// d.Root travel with the package and are not listed. name is the installed
// package name.
//
//   - <top>/addons/libs merges into addons/libs when the tree holds a
//     multi-package layout.
//   - docs: the subfolder named after the package if present, else the whole
//     folder, becomes docs/<name>.
//   - resources: a subfolder named after the package becomes
//     resources/<name>; otherwise the folder merges into resources.
func Extras(fsys fs.FS, d Detection, name string) []Extra {
	top := wrapperRoot(fsys)
	var out []Extra
	add := func(x Extra) {
		if !within(x.Src, d.Root) {
			out = append(out, x)
		}
	}

	if libs := childDir(fsys, path.Join(top, "addons"), "libs"); libs != "" {
		add(Extra{Src: libs, Dest: "addons/libs", Merge: true})
	}
	if docs := childDir(fsys, top, "docs"); docs != "" {
		src := docs
		if own := childDir(fsys, docs, name); own != "" {
			src = own
		}
		add(Extra{Src: src, Dest: "docs/" + name})
	}
	if res := childDir(fsys, top, "resources"); res != "" {
		if own := childDir(fsys, res, name); own != "" {
			add(Extra{Src: own, Dest: "resources/" + name})
		} else {
			add(Extra{Src: res, Dest: "resources", Merge: true})
		}
	}
	return out
}

// childDir finds a visible subdirectory of dir by case-insensitive name.
func childDir(fsys fs.FS, dir, name string) string {
	if name == "" {
		return ""
	}
	for _, d := range visibleDirs(fsys, dir) {
		if strings.EqualFold(path.Base(d), name) {
			return d
		}
	}
	return ""
}

// within reports whether p is root or lies below it.
func within(p, root string) bool {
	return root == "." || p == root || strings.HasPrefix(p, root+"/")
}

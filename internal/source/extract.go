package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type archiveFormat int

const (
	formatUnknown archiveFormat = iota
	formatZip
	formatTarGz
)

// sniffFormat looks at the magic bytes first and falls back to the name.
func sniffFormat(f *os.File, name string) (archiveFormat, error) {
	head := make([]byte, 4)
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return formatUnknown, err
	}
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, []byte("PK\x03\x04")), bytes.HasPrefix(head, []byte("PK\x05\x06")):
		return formatZip, nil
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		return formatTarGz, nil
	}
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz, nil
	}
	return formatUnknown, nil
}

// safeJoin joins name under destPath and rejects entries escaping it.
func safeJoin(destPath, name string) (string, error) {
	target := filepath.Join(destPath, filepath.FromSlash(name))
	rel, err := filepath.Rel(destPath, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

// commonTopDir returns the single top-level directory shared by all names,
// or "" when entries live at the root or under several directories.
func commonTopDir(names []string) string {
	top := ""
	for _, name := range names {
		name = strings.TrimPrefix(name, "./")
		if name == "" {
			continue
		}
		parts := strings.SplitN(name, "/", 2)
		if len(parts) < 2 {
			if strings.HasSuffix(name, "/") {
				parts = []string{strings.TrimSuffix(name, "/"), ""}
			} else {
				return ""
			}
		}
		if top == "" {
			top = parts[0]
		} else if top != parts[0] {
			return ""
		}
	}
	return top
}

func stripTop(name, top string) string {
	name = strings.TrimPrefix(name, "./")
	if top != "" {
		name = strings.TrimPrefix(strings.TrimPrefix(name, top), "/")
	}
	return name
}

func extractTarGz(r io.Reader, destPath string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gzr.Close()

	type entry struct {
		header *tar.Header
		data   []byte
	}
	var entries []entry
	var names []string

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		var data []byte
		if header.Typeflag == tar.TypeReg {
			if data, err = io.ReadAll(tr); err != nil {
				return err
			}
		}
		entries = append(entries, entry{header: header, data: data})
		names = append(names, header.Name)
	}

	topDir := commonTopDir(names)
	for _, e := range entries {
		name := stripTop(e.header.Name, topDir)
		if name == "" {
			continue
		}
		target, err := safeJoin(destPath, name)
		if err != nil {
			return err
		}

		switch e.header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(target, e.data, os.FileMode(e.header.Mode).Perm()|0o600); err != nil {
				return err
			}
		}
	}

	return nil
}

func extractZip(zipPath, destPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	topDir := commonTopDir(names)

	for _, f := range r.File {
		name := stripTop(f.Name, topDir)
		if name == "" {
			continue
		}

		target, err := safeJoin(destPath, name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, rc); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

package keys

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Bundle is a set of key files. Names are relative to the bundle root after
// an optional wrapping directory has been stripped.
type Bundle interface {
	Names() []string
	ReadFile(name string) ([]byte, error)
	Close() error
}

// OpenBundle opens a key bundle stored as a directory or a zip archive.
func OpenBundle(path string) (Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key bundle: %w", err)
	}
	if info.IsDir() {
		return openDirBundle(path)
	}
	return openZipBundle(path)
}

type dirBundle struct {
	root  string
	names []string
}

func openDirBundle(root string) (*dirBundle, error) {
	names, dirs, err := readBundleDir(root)
	if err != nil {
		return nil, err
	}

	// a lone directory wraps the real entries; only one level is stripped
	if len(names) == 0 && len(dirs) == 1 {
		root = filepath.Join(root, dirs[0])
		if names, _, err = readBundleDir(root); err != nil {
			return nil, err
		}
	}

	sort.Strings(names)
	return &dirBundle{root: root, names: names}, nil
}

func readBundleDir(dir string) (names, dirs []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read key bundle: %w", err)
	}
	for _, e := range entries {
		switch {
		case isHidden(e.Name()):
		case e.IsDir():
			dirs = append(dirs, e.Name())
		case e.Type().IsRegular():
			names = append(names, e.Name())
		}
	}
	return names, dirs, nil
}

// isHidden reports dot files such as .DS_Store. Encoded key names never
// start with a dot.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (b *dirBundle) Names() []string { return b.names }

func (b *dirBundle) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.root, name))
}

func (b *dirBundle) Close() error { return nil }

type zipBundle struct {
	r     *zip.ReadCloser
	files map[string]*zip.File
	names []string
}

func openZipBundle(archive string) (*zipBundle, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open key archive: %w", err)
	}

	var entries []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && !isHidden(path.Base(f.Name)) {
			entries = append(entries, f)
		}
	}

	prefix := commonDir(entries)
	b := &zipBundle{r: r, files: make(map[string]*zip.File, len(entries))}
	for _, f := range entries {
		name := strings.TrimPrefix(f.Name, prefix)
		if strings.Contains(name, "/") {
			continue
		}
		b.files[name] = f
		b.names = append(b.names, name)
	}
	sort.Strings(b.names)
	return b, nil
}

// commonDir returns "dir/" when every entry lives directly in the same
// top-level directory.
func commonDir(entries []*zip.File) string {
	if len(entries) == 0 {
		return ""
	}
	dir, _, ok := strings.Cut(entries[0].Name, "/")
	if !ok {
		return ""
	}
	for _, f := range entries[1:] {
		d, _, ok := strings.Cut(f.Name, "/")
		if !ok || d != dir {
			return ""
		}
	}
	return dir + "/"
}

func (b *zipBundle) Names() []string { return b.names }

func (b *zipBundle) ReadFile(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *zipBundle) Close() error { return b.r.Close() }

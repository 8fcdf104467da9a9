package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rainycape/unidecode"
	"go.senan.xyz/natcmp"
)

func GlobEscape(path string) string {
	var r strings.Builder
	for _, c := range path {
		switch c {
		case '*', '?', '[':
			r.WriteRune('[')
			r.WriteRune(c)
			r.WriteRune(']')
		default:
			r.WriteRune(c)
		}
	}
	return r.String()
}

func GlobBase(dir, pattern string) ([]string, error) {
	return filepath.Glob(filepath.Join(GlobEscape(dir), pattern))
}

// ListFiles returns the regular files directly inside dir whose lower cased extension is in exts,
// in natural order.
func ListFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.SortFunc(paths, natcmp.Compare)
	return paths, nil
}

// WalkLeaves calls fn for every directory under root, root included, that has no subdirectories.
// Siblings are visited in natural order.
func WalkLeaves(root string, fn func(path string, d fs.DirEntry) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	return walkLeaves(root, fs.FileInfoToDirEntry(info), fn)
}

func walkLeaves(path string, d fs.DirEntry, fn func(path string, d fs.DirEntry) error) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int { return natcmp.Compare(a.Name(), b.Name()) })

	var isLeaf = true
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		isLeaf = false
		if err := walkLeaves(filepath.Join(path, e.Name()), e, fn); err != nil {
			return err
		}
	}
	if isLeaf {
		return fn(path, d)
	}
	return nil
}

// CopyFile copies the contents and permissions of src to dst, replacing dst if it exists.
func CopyFile(src, dst string) (err error) {
	srcf, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer srcf.Close()

	info, err := srcf.Stat()
	if err != nil {
		return fmt.Errorf("stat src: %w", err)
	}

	dstf, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("open dst: %w", err)
	}
	defer func() {
		err = errors.Join(err, dstf.Close())
	}()

	if _, err := io.Copy(dstf, srcf); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path then renames it into place, so
// concurrent readers never see a partial file.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

var safePathReplacer = strings.NewReplacer(
	"\x00", "",
	":", "",
	"/", " ",
	`\`, " ",
)

// SafePath makes name usable as a single path element.
func SafePath(name string) string {
	name = safePathReplacer.Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return name
}

// SafeASCIIPath is SafePath with non ASCII runes transliterated.
func SafeASCIIPath(name string) string {
	return SafePath(unidecode.Unidecode(name))
}

package fileutil_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.arctag.dev/arctag/fileutil"
)

func TestSafePath(t *testing.T) {
	assert.Equal(t, "hello", fileutil.SafePath("hello"))
	assert.Equal(t, "hello", fileutil.SafePath("hello/"))
	assert.Equal(t, "hello a", fileutil.SafePath("hello/a"))
	assert.Equal(t, "hello a", fileutil.SafePath("hello / a"))
	assert.Equal(t, "hello a", fileutil.SafePath(`hello\a`))
	assert.Equal(t, "hello", fileutil.SafePath("hel\x00lo"))
	assert.Equal(t, "a b", fileutil.SafePath("a  b"))
	assert.Equal(t, "(2004) Kesto (234.484)", fileutil.SafePath("(2004) Kesto (234.48:4)"))
	assert.Equal(t, "01.33 Rähinä I Mayhem I", fileutil.SafePath("01.33 Rähinä I Mayhem I"))
	assert.Equal(t, "01.33 Rahina I Mayhem I", fileutil.SafeASCIIPath("01.33 Rähinä I Mayhem I"))
	assert.Equal(t, "AC DC", fileutil.SafeASCIIPath("AC/DC"))
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, "a[*]b[?]c[[]d]", fileutil.GlobEscape("a*b?c[d]"))
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"10 - ten.flac", "2 - two.FLAC", "1 - one.mp3", "cover.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.flac"), os.ModePerm))

	got, err := fileutil.ListFiles(dir, []string{".flac", ".mp3"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "1 - one.mp3"),
		filepath.Join(dir, "2 - two.FLAC"),
		filepath.Join(dir, "10 - ten.flac"),
	}, got)

	got, err = fileutil.ListFiles(dir, []string{".ogg"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWalkLeaves(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, p := range []string{"B/Album 10", "B/Album 9", "A/Album/CD1", "A/Album/CD2", "C"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, p), os.ModePerm))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "artist.png"), nil, 0o644))

	var got []string
	err := fileutil.WalkLeaves(root, func(path string, d fs.DirEntry) error {
		assert.True(t, d.IsDir())
		rel, _ := filepath.Rel(root, path)
		got = append(got, rel)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("A", "Album", "CD1"),
		filepath.Join("A", "Album", "CD2"),
		filepath.Join("B", "Album 9"),
		filepath.Join("B", "Album 10"),
		"C",
	}, got)
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("a much longer old body"), 0o644))

	require.NoError(t, fileutil.CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = os.Stat(src)
	require.NoError(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "artist.png")
	require.NoError(t, fileutil.WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, fileutil.WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

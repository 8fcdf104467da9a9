package override

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	o, err := Find(dir)
	require.NoError(t, err)
	assert.Nil(t, o)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "arctag.yml"), []byte("artist: \" Artist X \"\nalbum: Album Y\n"), 0o644))
	o, err = Find(dir)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "Artist X", o.Artist)
	assert.Equal(t, "Album Y", o.Album)
}

func TestFindGlobChars(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "Album [Live]")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arctag.yaml"), []byte("album: Album Live\n"), 0o644))

	o, err := Find(dir)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "Album Live", o.Album)
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "arctag.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	o, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, &Override{}, o)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "arctag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("artist: [unclosed\n"), 0o644))

	_, err := Parse(path)
	require.Error(t, err)
}

func TestApply(t *testing.T) {
	t.Parallel()

	var none *Override
	al, ar := none.Apply("Album", "Artist")
	assert.Equal(t, "Album", al)
	assert.Equal(t, "Artist", ar)

	al, ar = (&Override{Artist: "Other"}).Apply("Album", "Artist")
	assert.Equal(t, "Album", al)
	assert.Equal(t, "Other", ar)
}

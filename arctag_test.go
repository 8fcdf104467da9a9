package arctag_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.arctag.dev/arctag"
	"go.arctag.dev/arctag/album"
	"go.arctag.dev/arctag/coverimage"
	"go.arctag.dev/arctag/provider"
	"go.arctag.dev/arctag/tags"
	"go.arctag.dev/arctag/tags/tagstest"
	"go.arctag.dev/arctag/visibility"
)

func TestProcessDir(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	inDir := filepath.Join(in, "ArtistX", "AlbumY")
	writeFiles(t, inDir, "01 - Song One.flac", "02 - song two (bonus).FLAC", "notes.txt")

	var hidden []string
	tg := arctag.New(arctag.Config{
		Provider: staticProvider(t, testAlbum(t)),
		Hider: visibility.HiderFunc(func(path string) error {
			hidden = append(hidden, path)
			return nil
		}),
	})

	outDir := filepath.Join(out, "ArtistX", "AlbumY")
	report, err := tg.ProcessDir(context.Background(), inDir, outDir, "AlbumY", "ArtistX")
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Tagged())
	assert.Empty(t, report.Unmatched())

	assert.Equal(t, []string{"Song One.flac", "Song Two.flac", "cover.png"}, listDir(t, outDir))
	assert.Equal(t, []string{"AlbumY", "artist.png"}, listDir(t, filepath.Join(out, "ArtistX")))
	assert.Equal(t, []string{
		filepath.Join(out, "ArtistX", "artist.png"),
		filepath.Join(outDir, "cover.png"),
	}, hidden)

	cover, err := os.ReadFile(filepath.Join(outDir, "cover.png"))
	require.NoError(t, err)

	one, err := tags.Read(filepath.Join(outDir, "Song One.flac"))
	require.NoError(t, err)
	assert.Equal(t, "Song One", one.Get(tags.Title))
	assert.Equal(t, "AlbumY", one.Get(tags.Album))
	assert.Equal(t, "ArtistX", one.Get(tags.AlbumArtist))
	assert.Equal(t, []string{"Artistx", "Guest Singer"}, one.Values(tags.Artist))
	assert.Equal(t, "2019-10-29", one.Get(tags.Date))
	assert.Equal(t, "1", one.Get(tags.TrackNumber))
	assert.Equal(t, "1", one.Get(tags.DiscNumber))
	assert.Equal(t, []string{"Art Pop", "Indie Rock"}, one.Values(tags.Genre))

	pic, ok := one.FrontCover()
	require.True(t, ok)
	assert.Equal(t, cover, pic.Data)
	assert.Equal(t, "image/png", pic.MIME)
	assert.Equal(t, 4, pic.Width)
	assert.Equal(t, 2, pic.Height)
	assert.Equal(t, 8, pic.Depth)

	two, err := tags.Read(filepath.Join(outDir, "Song Two.flac"))
	require.NoError(t, err)
	assert.Equal(t, "Song Two", two.Get(tags.Title))
	assert.Equal(t, "2", two.Get(tags.TrackNumber))

	// sources are copied, not moved
	assert.FileExists(t, filepath.Join(inDir, "01 - Song One.flac"))
}

func TestProcessDirMismatch(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	inDir := filepath.Join(in, "ArtistX", "AlbumY")
	writeFiles(t, inDir, "01 - Song One.flac")

	deluxe := testAlbum(t)
	deluxe.Album = "Album Y (Deluxe)"
	tg := arctag.New(arctag.Config{
		Provider: provider.Func(func(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
			return deluxe, nil
		}),
		Hider: visibility.Nop{},
	})

	outDir := filepath.Join(out, "ArtistX", "AlbumY")
	report, err := tg.ProcessDir(context.Background(), inDir, outDir, "AlbumY", "ArtistX")
	require.ErrorIs(t, err, album.ErrMismatch)
	require.NotNil(t, report.Mismatch)
	assert.Equal(t, "AlbumY", report.Mismatch.RequestedAlbum)
	assert.Equal(t, "Album Y (Deluxe)", report.Mismatch.FoundAlbum)
	assert.Zero(t, report.Tagged())
	assert.NoDirExists(t, filepath.Join(out, "ArtistX"))
}

func TestProcessDirProviderErrors(t *testing.T) {
	t.Parallel()

	for _, provErr := range []error{provider.ErrNotFound, provider.ErrUnavailable} {
		t.Run(provErr.Error(), func(t *testing.T) {
			t.Parallel()

			in, out := t.TempDir(), t.TempDir()
			writeFiles(t, in, "01 - Song One.flac")

			tg := arctag.New(arctag.Config{
				Provider: provider.Func(func(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
					return nil, provErr
				}),
				Hider: visibility.Nop{},
			})
			_, err := tg.ProcessDir(context.Background(), in, filepath.Join(out, "a"), "AlbumY", "ArtistX")
			require.ErrorIs(t, err, provErr)
			assert.NoDirExists(t, filepath.Join(out, "a"))
		})
	}
}

func TestProcessDirNoEligibleFiles(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "notes.txt", "cover.jpg")

	var calls atomic.Int32
	tg := arctag.New(arctag.Config{
		Provider: provider.Func(func(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
			calls.Add(1)
			return testAlbum(t), nil
		}),
		Hider: visibility.Nop{},
	})

	outDir := filepath.Join(out, "ArtistX", "AlbumY")
	report, err := tg.ProcessDir(context.Background(), in, outDir, "AlbumY", "ArtistX")
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, calls.Load())
	assert.NoDirExists(t, filepath.Join(out, "ArtistX"))

	report, err = tg.Format(context.Background(), testAlbum(t), in, outDir)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.NoDirExists(t, filepath.Join(out, "ArtistX"))
}

func TestFormatEmptyMetadata(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}})
	_, err := tg.Format(context.Background(), album.New("AlbumY", "ArtistX"), in, filepath.Join(out, "a"))
	require.ErrorIs(t, err, arctag.ErrNoMetadata)
	assert.NoDirExists(t, filepath.Join(out, "a"))
}

func TestFormatIdempotent(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac", "02 Song Two.mp3")

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}, FileParallel: 4})
	md := testAlbum(t)

	_, err := tg.Format(context.Background(), md, in, out)
	require.NoError(t, err)
	firstFLAC := readFile(t, filepath.Join(out, "Song One.flac"))
	firstMP3 := readFile(t, filepath.Join(out, "Song Two.mp3"))

	_, err = tg.Format(context.Background(), md, in, out)
	require.NoError(t, err)
	assert.Equal(t, firstFLAC, readFile(t, filepath.Join(out, "Song One.flac")))
	assert.Equal(t, firstMP3, readFile(t, filepath.Join(out, "Song Two.mp3")))

	for _, name := range []string{"Song One.flac", "Song Two.mp3"} {
		tg, err := tags.Read(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Len(t, tg.Pictures, 1, name)
	}
}

func TestFormatUnmatched(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac", "03 - Outro.flac")

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}})
	report, err := tg.Format(context.Background(), testAlbum(t), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tagged())
	assert.Equal(t, []string{filepath.Join(in, "03 - Outro.flac")}, report.Unmatched())
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"Song One.flac", "cover.png"}, listDir(t, out))
}

func TestFormatCollisions(t *testing.T) {
	t.Parallel()

	t.Run("overwrite", func(t *testing.T) {
		t.Parallel()

		in, out := t.TempDir(), t.TempDir()
		writeFiles(t, in, "01 Song One.flac", "01 Song One (remix).mp3")

		tg := arctag.New(arctag.Config{Hider: visibility.Nop{}})
		report, err := tg.Format(context.Background(), testAlbum(t), in, out)
		require.NoError(t, err)
		require.NoError(t, report.Err())
		assert.Equal(t, 1, report.Tagged())

		// natural order puts the flac last, it wins
		assert.Equal(t, []string{"Song One.flac", "cover.png"}, listDir(t, out))
		for _, f := range report.Files {
			assert.Equal(t, filepath.Ext(f.Source) == ".mp3", f.Superseded, f.Source)
		}
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()

		in, out := t.TempDir(), t.TempDir()
		writeFiles(t, in, "01 Song One.flac", "01 Song One (remix).flac", "02 Song Two.flac")

		tg := arctag.New(arctag.Config{Hider: visibility.Nop{}, OnCollision: arctag.CollisionError})
		report, err := tg.Format(context.Background(), testAlbum(t), in, out)
		require.NoError(t, err)
		require.ErrorIs(t, report.Err(), arctag.ErrCollision)
		assert.Equal(t, 1, report.Tagged())
		assert.Equal(t, []string{"Song Two.flac", "cover.png"}, listDir(t, out))
	})
}

func TestFormatDryRun(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac", "02 - Song Two.flac")

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}, DryRun: true})
	outDir := filepath.Join(out, "a")
	report, err := tg.Format(context.Background(), testAlbum(t), in, outDir)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	assert.Equal(t, filepath.Join(outDir, "Song One.flac"), report.Files[0].Dest)
	assert.NoDirExists(t, outDir)
}

func TestFormatPerFileFaults(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")
	_, err := tagstest.Write(in, "02 - Song Two.flac", []byte("not a flac"))
	require.NoError(t, err)

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}})
	report, err := tg.Format(context.Background(), testAlbum(t), in, out)
	require.NoError(t, err)
	require.ErrorIs(t, report.Err(), tags.ErrWrite)
	assert.Equal(t, 1, report.Tagged())
	assert.FileExists(t, filepath.Join(out, "Song One.flac"))
}

func TestFormatHideFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")

	tg := arctag.New(arctag.Config{
		Hider: visibility.HiderFunc(func(string) error { return errors.New("no hiding here") }),
	})
	report, err := tg.Format(context.Background(), testAlbum(t), in, filepath.Join(out, "ArtistX", "AlbumY"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tagged())
	assert.NotEmpty(t, report.Cover)
	assert.NotEmpty(t, report.ArtistImage)
}

// Not parallel, the default logger is swapped out.
func TestFormatHideUnsupportedIsQuiet(t *testing.T) {
	logs := captureLogs(t)

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")

	tg := arctag.New(arctag.Config{
		Hider: visibility.HiderFunc(func(string) error { return visibility.ErrUnsupported }),
	})
	report, err := tg.Format(context.Background(), testAlbum(t), in, filepath.Join(out, "ArtistX", "AlbumY"))
	require.NoError(t, err)
	assert.NotEmpty(t, report.Cover)
	assert.NotEmpty(t, report.ArtistImage)

	assert.NotContains(t, logs.String(), "hide cover")
	assert.NotContains(t, logs.String(), "hide artist image")
}

// Not parallel, the default logger is swapped out.
func TestFormatTitleWithoutLettersMatchesAnyFile(t *testing.T) {
	logs := captureLogs(t)

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac", "03 - Song Three.flac")

	md := album.New("AlbumY", "ArtistX")
	md.AddTrack(album.Track{Title: "Song One", Artists: []string{"ArtistX"}, TrackNumber: 1, DiscNumber: 1})
	md.AddTrack(album.Track{Title: "?", Artists: []string{"ArtistX"}, TrackNumber: 2, DiscNumber: 1})
	md.AddTrack(album.Track{Title: "Song Three", Artists: []string{"ArtistX"}, TrackNumber: 3, DiscNumber: 1})

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}, DryRun: true})
	report, err := tg.Format(context.Background(), md, in, out)
	require.NoError(t, err)

	titles := map[string]string{}
	for _, f := range report.Files {
		titles[filepath.Base(f.Source)] = f.Title
	}
	assert.Equal(t, map[string]string{"01 - Song One.flac": "Song One", "03 - Song Three.flac": "?"}, titles)
	assert.Contains(t, logs.String(), "track title has no letters or digits")
}

func TestFormatOutputDirFailure(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")

	blocker := filepath.Join(out, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	tg := arctag.New(arctag.Config{Hider: visibility.Nop{}})
	_, err := tg.Format(context.Background(), testAlbum(t), in, filepath.Join(blocker, "AlbumY"))
	require.ErrorIs(t, err, arctag.ErrCreateOutputDir)
}

func TestProcessDirOverride(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")
	require.NoError(t, os.WriteFile(filepath.Join(in, "arctag.yaml"), []byte("album: AlbumY\nartist: ArtistX\n"), 0o644))

	tg := arctag.New(arctag.Config{Provider: staticProvider(t, testAlbum(t)), Hider: visibility.Nop{}})
	report, err := tg.ProcessDir(context.Background(), in, out, "Album Y [FLAC]", "Various")
	require.NoError(t, err)
	assert.Equal(t, "AlbumY", report.Album)
	assert.Equal(t, 1, report.Tagged())

	got, err := tags.Read(filepath.Join(out, "Song One.flac"))
	require.NoError(t, err)
	assert.Equal(t, "AlbumY", got.Get(tags.Album))
}

func TestProcessDirLocalCover(t *testing.T) {
	t.Parallel()

	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, "01 - Song One.flac")

	local, err := coverimage.FromImage(image.NewNRGBA(image.Rect(0, 0, 6, 6)))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(in, "front.png"), local.Data, 0o644))

	md := testAlbum(t)
	md.CoverImage = nil

	tg := arctag.New(arctag.Config{Provider: staticProvider(t, md), Hider: visibility.Nop{}, LocalCover: true})
	report, err := tg.ProcessDir(context.Background(), in, out, "AlbumY", "ArtistX")
	require.NoError(t, err)
	require.NotEmpty(t, report.Cover)

	got, err := tags.Read(filepath.Join(out, "Song One.flac"))
	require.NoError(t, err)
	pic, ok := got.FrontCover()
	require.True(t, ok)
	assert.Equal(t, 6, pic.Width)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func testAlbum(t *testing.T) *album.Metadata {
	t.Helper()

	cover := image.NewRGBA(image.Rect(0, 0, 4, 2))
	cover.Set(1, 1, color.RGBA{R: 255, A: 255})
	coverImg, err := coverimage.FromImage(cover)
	require.NoError(t, err)

	artistImg, err := coverimage.FromImage(image.NewGray(image.Rect(0, 0, 3, 3)))
	require.NoError(t, err)

	genres := []string{"art pop", "indie rock"}
	md := album.New("AlbumY", "ArtistX")
	md.CoverImage = coverImg
	md.ArtistImage = artistImg
	md.AddTrack(album.Track{Title: "Song One", Artists: []string{"ArtistX", "guest singer"}, TrackNumber: 1, DiscNumber: 1, ReleaseDate: "2019-10-29", Genres: genres})
	md.AddTrack(album.Track{Title: "Song Two", Artists: []string{"ArtistX"}, TrackNumber: 2, DiscNumber: 1, ReleaseDate: "2019-10-29", Genres: genres})
	return md
}

func staticProvider(t *testing.T, mds ...*album.Metadata) *provider.Static {
	t.Helper()

	var s provider.Static
	for _, md := range mds {
		s.Add(md)
	}
	return &s
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		_, err := tagstest.Write(dir, name, tagstest.ForExt(strings.ToLower(filepath.Ext(name))))
		require.NoError(t, err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

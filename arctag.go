package arctag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go.arctag.dev/arctag/album"
	"go.arctag.dev/arctag/coverimage"
	"go.arctag.dev/arctag/coverparse"
	"go.arctag.dev/arctag/fileutil"
	"go.arctag.dev/arctag/match"
	"go.arctag.dev/arctag/override"
	"go.arctag.dev/arctag/provider"
	"go.arctag.dev/arctag/tags"
	"go.arctag.dev/arctag/visibility"
)

var (
	ErrNoMetadata      = errors.New("no metadata")
	ErrUnmatched       = errors.New("no matching track title")
	ErrCollision       = errors.New("more than one file matches the title")
	ErrCreateOutputDir = errors.New("create output dir")
)

const (
	CoverName  = "cover.png"
	ArtistName = "artist.png"
)

var DefaultExtensions = []string{".flac", ".mp3"}

type CollisionPolicy string

const (
	// CollisionOverwrite keeps the last file in natural order for each title.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionError fails every file that shares a title with another.
	CollisionError CollisionPolicy = "error"
)

func (p CollisionPolicy) IsValid() bool {
	return p == CollisionOverwrite || p == CollisionError
}

type Config struct {
	Provider provider.Provider
	Writer   tags.Writer
	Hider    visibility.Hider

	// Lower case and dotted, like ".flac".
	Extensions   []string
	FileParallel int
	OnCollision  CollisionPolicy
	ASCIIPaths   bool

	// Use the best image in the input dir when the catalog has no cover.
	LocalCover   bool
	CoverMaxSize int

	DryRun bool
}

type Tagger struct {
	cfg Config

	artistMu    sync.Mutex
	artistLocks map[string]*sync.Mutex
}

func New(cfg Config) *Tagger {
	if cfg.Writer == nil {
		cfg.Writer = tags.Default()
	}
	if cfg.Hider == nil {
		cfg.Hider = visibility.OS{}
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.FileParallel <= 0 {
		cfg.FileParallel = 1
	}
	if cfg.OnCollision == "" {
		cfg.OnCollision = CollisionOverwrite
	}
	return &Tagger{cfg: cfg, artistLocks: map[string]*sync.Mutex{}}
}

type FileResult struct {
	Source string
	Dest   string
	Title  string

	// Another file with the same title was written over this one's destination.
	Superseded bool
	Err        error
}

type Report struct {
	InputDir, OutputDir string
	Album, Artist       string

	Mismatch  *album.MismatchError
	NumTracks int
	Files     []FileResult

	Cover, ArtistImage string

	// No eligible files, nothing was done.
	Skipped bool
	DryRun  bool
}

func (r *Report) Tagged() int {
	var n int
	for _, f := range r.Files {
		if f.Err == nil && !f.Superseded {
			n++
		}
	}
	return n
}

func (r *Report) Unmatched() []string {
	var paths []string
	for _, f := range r.Files {
		if errors.Is(f.Err, ErrUnmatched) {
			paths = append(paths, f.Source)
		}
	}
	return paths
}

// Err joins the per file errors other than unmatched files.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil && !errors.Is(f.Err, ErrUnmatched) {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(f.Source), f.Err))
		}
	}
	return errors.Join(errs...)
}

// ProcessDir looks up the album in inputDir and formats it into outputDir. Catalog failures are
// returned with the report and leave the file system untouched. A directory with no eligible files
// is skipped without error.
func (t *Tagger) ProcessDir(ctx context.Context, inputDir, outputDir, albumName, artistName string) (*Report, error) {
	if t.cfg.Provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", provider.ErrUnavailable)
	}

	switch o, err := override.Find(inputDir); {
	case err != nil:
		slog.WarnContext(ctx, "ignoring override file", "dir", inputDir, "err", err)
	case o != nil:
		albumName, artistName = o.Apply(albumName, artistName)
		slog.DebugContext(ctx, "using override names", "dir", inputDir, "album", albumName, "artist", artistName)
	}

	report := &Report{InputDir: inputDir, OutputDir: outputDir, Album: albumName, Artist: artistName, DryRun: t.cfg.DryRun}

	files, err := fileutil.ListFiles(inputDir, t.cfg.Extensions)
	if err != nil {
		return report, fmt.Errorf("list files: %w", err)
	}
	if len(files) == 0 {
		slog.DebugContext(ctx, "skipping dir with no eligible files", "dir", inputDir)
		report.Skipped = true
		return report, nil
	}

	md := album.New(albumName, artistName)
	fetched, err := t.cfg.Provider.FetchAlbum(ctx, albumName, artistName)
	if err == nil {
		err = md.Populate(fetched)
	}
	if err != nil {
		if mismatch := (*album.MismatchError)(nil); errors.As(err, &mismatch) {
			report.Mismatch = mismatch
			slog.WarnContext(ctx, "catalog returned a different album",
				"dir", inputDir, "album", albumName, "artist", artistName,
				"found_album", mismatch.FoundAlbum, "found_artist", mismatch.FoundArtist)
		}
		return report, fmt.Errorf("fetch album: %w", err)
	}

	if md.CoverImage == nil && t.cfg.LocalCover {
		md.CoverImage = t.localCover(ctx, inputDir)
	}

	formatReport, err := t.format(ctx, md, inputDir, outputDir, files)
	formatReport.Album, formatReport.Artist = albumName, artistName
	return formatReport, err
}

// Format copies the eligible files of inputDir that match a track of md into outputDir and tags
// them. An empty md produces no output.
func (t *Tagger) Format(ctx context.Context, md *album.Metadata, inputDir, outputDir string) (*Report, error) {
	files, err := fileutil.ListFiles(inputDir, t.cfg.Extensions)
	if err != nil {
		return &Report{InputDir: inputDir, OutputDir: outputDir}, fmt.Errorf("list files: %w", err)
	}
	return t.format(ctx, md, inputDir, outputDir, files)
}

func (t *Tagger) format(ctx context.Context, md *album.Metadata, inputDir, outputDir string, files []string) (*Report, error) {
	report := &Report{
		InputDir: inputDir, OutputDir: outputDir,
		Album: md.Album, Artist: md.Artist,
		NumTracks: md.NumTracks(),
		DryRun:    t.cfg.DryRun,
	}
	if len(files) == 0 {
		slog.DebugContext(ctx, "skipping dir with no eligible files", "dir", inputDir)
		report.Skipped = true
		return report, nil
	}
	if md.Empty() {
		return report, ErrNoMetadata
	}

	for _, title := range md.Titles() {
		if match.Normalise(title) == "" {
			slog.WarnContext(ctx, "track title has no letters or digits and matches any file", "dir", inputDir, "title", title)
		}
	}

	associations := match.Associate(files, md.Titles())
	for _, path := range match.Unmatched(files, associations) {
		slog.WarnContext(ctx, "no track title matches file", "dir", inputDir, "file", filepath.Base(path))
		report.Files = append(report.Files, FileResult{Source: path, Err: ErrUnmatched})
	}

	collisions := match.Collisions(files, associations)

	var work []int
	for _, path := range files {
		title, ok := associations[path]
		if !ok {
			continue
		}
		res := FileResult{Source: path, Title: title, Dest: t.destPath(outputDir, title, path)}
		if others := collisions[title]; len(others) > 0 {
			switch t.cfg.OnCollision {
			case CollisionError:
				res.Err = fmt.Errorf("%w: %q", ErrCollision, title)
			default:
				if others[len(others)-1] != path {
					res.Superseded = true
					slog.WarnContext(ctx, "file superseded by a later file with the same title",
						"dir", inputDir, "file", filepath.Base(path), "title", title)
				}
			}
		}
		report.Files = append(report.Files, res)
		if res.Err == nil && !res.Superseded {
			work = append(work, len(report.Files)-1)
		}
	}

	if t.cfg.DryRun {
		return report, nil
	}

	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return report, fmt.Errorf("%w: %w", ErrCreateOutputDir, err)
	}

	var cover *tags.Picture
	if md.CoverImage != nil {
		coverPath := filepath.Join(outputDir, CoverName)
		if err := fileutil.WriteFileAtomic(coverPath, md.CoverImage.Data, 0o644); err != nil {
			slog.ErrorContext(ctx, "write cover", "dir", outputDir, "err", err)
		} else if data, err := os.ReadFile(coverPath); err != nil {
			slog.ErrorContext(ctx, "read back cover", "dir", outputDir, "err", err)
		} else {
			report.Cover = coverPath
			cover = &tags.Picture{
				Type:   tags.PictureFrontCover,
				MIME:   "image/png",
				Width:  md.CoverImage.Width,
				Height: md.CoverImage.Height,
				Depth:  md.CoverImage.Depth,
				Data:   data,
			}
		}
	}

	if md.ArtistImage != nil {
		if path, err := t.writeArtistImage(ctx, filepath.Dir(outputDir), md.ArtistImage); err != nil {
			slog.ErrorContext(ctx, "write artist image", "dir", filepath.Dir(outputDir), "err", err)
		} else {
			report.ArtistImage = path
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(t.cfg.FileParallel)
	for _, i := range work {
		res := &report.Files[i]
		track, _ := md.Track(res.Title)
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				res.Err = err
				return nil
			}
			if err := t.writeFile(res.Source, res.Dest, md, track, cover); err != nil {
				slog.ErrorContext(egCtx, "write file", "file", res.Source, "dest", res.Dest, "err", err)
				res.Err = err
				return nil
			}
			slog.DebugContext(egCtx, "wrote file", "dest", res.Dest, "title", res.Title)
			return nil
		})
	}
	_ = eg.Wait()

	if report.Cover != "" {
		if err := t.cfg.Hider.Hide(report.Cover); err != nil && !errors.Is(err, visibility.ErrUnsupported) {
			slog.WarnContext(ctx, "hide cover", "path", report.Cover, "err", err)
		}
	}

	return report, nil
}

func (t *Tagger) destPath(outputDir, title, source string) string {
	name := fileutil.SafePath(title)
	if t.cfg.ASCIIPaths {
		name = fileutil.SafeASCIIPath(title)
	}
	return filepath.Join(outputDir, name+strings.ToLower(filepath.Ext(source)))
}

func (t *Tagger) writeFile(src, dest string, md *album.Metadata, track album.Track, cover *tags.Picture) error {
	if err := fileutil.CopyFile(src, dest); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	f, err := t.cfg.Writer.Open(dest)
	if err != nil {
		return fmt.Errorf("open tags: %w", err)
	}
	defer f.Close()

	caser := cases.Title(language.Und)
	titled := func(vs []string) []string {
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			out = append(out, caser.String(v))
		}
		return out
	}

	f.Set(tags.Title, track.Title)
	f.Set(tags.Album, md.Album)
	f.Set(tags.AlbumArtist, md.Artist)
	f.Set(tags.Artist, titled(track.Artists)...)
	f.Set(tags.Date, track.ReleaseDate)
	f.Set(tags.TrackNumber, strconv.Itoa(track.TrackNumber))
	f.Set(tags.DiscNumber, strconv.Itoa(track.DiscNumber))
	f.Set(tags.Genre, titled(track.Genres)...)
	if cover != nil {
		f.EmbedPicture(*cover)
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	return nil
}

// writeArtistImage writes and hides the artist image. Albums of the same artist share the
// directory so writes to it are serialised.
func (t *Tagger) writeArtistImage(ctx context.Context, artistDir string, img *album.Image) (string, error) {
	t.artistMu.Lock()
	mu, ok := t.artistLocks[artistDir]
	if !ok {
		mu = &sync.Mutex{}
		t.artistLocks[artistDir] = mu
	}
	t.artistMu.Unlock()

	mu.Lock()
	defer mu.Unlock()

	path := filepath.Join(artistDir, ArtistName)
	if err := fileutil.WriteFileAtomic(path, img.Data, 0o644); err != nil {
		return "", err
	}
	if err := t.cfg.Hider.Hide(path); err != nil && !errors.Is(err, visibility.ErrUnsupported) {
		slog.WarnContext(ctx, "hide artist image", "path", path, "err", err)
	}
	return path, nil
}

func (t *Tagger) localCover(ctx context.Context, dir string) *album.Image {
	path, err := coverparse.Find(dir)
	if err != nil || path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.WarnContext(ctx, "read local cover", "path", path, "err", err)
		return nil
	}
	img, err := coverimage.Decode(data, t.cfg.CoverMaxSize)
	if err != nil {
		slog.WarnContext(ctx, "decode local cover", "path", path, "err", err)
		return nil
	}
	slog.DebugContext(ctx, "using local cover", "path", path)
	return img
}

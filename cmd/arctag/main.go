package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.senan.xyz/table/table"

	"go.arctag.dev/arctag"
	"go.arctag.dev/arctag/album"
	"go.arctag.dev/arctag/cmd/internal/flags"
	"go.arctag.dev/arctag/diff"
	"go.arctag.dev/arctag/fileutil"
	"go.arctag.dev/arctag/journal"
	"go.arctag.dev/arctag/notifications"
	"go.arctag.dev/arctag/provider"
	"go.arctag.dev/arctag/researchlink"
	"go.arctag.dev/arctag/visibility"
)

const lockName = ".arctag.lock"

func init() {
	flag := flag.CommandLine
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), "Usage:\n")
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] -input <dir> -output <dir>\n", flag.Name())
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] -journal <path> journal [<status>]\n", flag.Name())
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Albums are the leaf directories under the input, named for the album and inside a directory named for the artist.\n")
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Options:\n")
		flag.PrintDefaults()
	}
}

// replaced while testing
var buildProvider = func(c *flags.ProviderConfig) (provider.Provider, error) {
	return c.Build()
}

var stdout io.Writer = color.Output

var dmp = diffmatchpatch.New()

func main() {
	defer flags.ExitError()
	var (
		inputDir      = flag.String("input", "", "directory to find artist/album directories in")
		outputDir     = flag.String("output", "", "directory to write the tagged archive to")
		parallel      = flag.Int("parallel", 2, "number of albums to process at once")
		fileParallel  = flag.Int("file-parallel", 4, "number of files per album to process at once")
		asciiPaths    = flag.Bool("ascii-paths", false, "transliterate output file names to ascii")
		localCover    = flag.Bool("local-cover", false, "use an image from the album directory when the catalog has no cover")
		dryRun        = flag.Bool("dry-run", false, "report what would be written without writing anything")
		journalPath   = flag.String("journal", "", "path to a sqlite journal recording every album processed")
		extensions    = flags.Extensions()
		onCollision   = flags.OnCollision()
		researchLinks = flags.ResearchLinks()
		notifs        = flags.Notifications()
		providerCfg   = flags.Provider()
	)
	flags.EnvPrefix(arctag.Name)
	flags.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var jrnl *journal.Journal
	if *journalPath != "" {
		var err error
		jrnl, err = journal.Open(ctx, *journalPath)
		if err != nil {
			slog.Error("open journal", "err", err)
			return
		}
		defer jrnl.Close()
	}

	switch command := flag.Arg(0); command {
	case "journal":
		if jrnl == nil {
			slog.Error("journal command needs -journal")
			return
		}
		if err := printJournal(ctx, stdout, jrnl, journal.Status(flag.Arg(1))); err != nil {
			slog.Error("print journal", "err", err)
		}
		return
	case "":
	default:
		slog.Error("unknown command", "command", command)
		return
	}

	if *inputDir == "" || *outputDir == "" {
		slog.Error("need -input and -output")
		return
	}
	if err := flags.AddDefaultResearchLinks(researchLinks); err != nil {
		slog.Error("add research links", "err", err)
		return
	}

	prov, err := buildProvider(providerCfg)
	if err != nil {
		slog.Error("create provider", "err", err)
		return
	}

	input, _ := filepath.Abs(*inputDir)
	output, _ := filepath.Abs(*outputDir)

	if !*dryRun {
		unlock, err := lockOutput(output)
		if err != nil {
			slog.Error("lock output", "err", err)
			return
		}
		defer unlock()
	}

	tagger := arctag.New(arctag.Config{
		Provider:     prov,
		Hider:        visibility.OS{},
		Extensions:   *extensions,
		FileParallel: *fileParallel,
		OnCollision:  *onCollision,
		ASCIIPaths:   *asciiPaths,
		LocalCover:   *localCover,
		CoverMaxSize: providerCfg.CoverMaxSize,
		DryRun:       *dryRun,
	})

	start := time.Now()
	leaves := make(chan string)
	go func() {
		defer close(leaves)
		err := fileutil.WalkLeaves(input, func(path string, _ fs.DirEntry) error {
			select {
			case leaves <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("walking input", "err", err)
		}
	}()

	r := run{
		id:            uuid.New(),
		tagger:        tagger,
		input:         input,
		output:        output,
		researchLinks: researchLinks,
		notifs:        notifs,
		journal:       jrnl,
	}

	var wg sync.WaitGroup
	for range max(*parallel, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctxConsume(ctx, leaves, func(dir string) {
				r.processDir(ctx, dir)
			})
		}()
	}
	wg.Wait()

	printSummary(stdout, r.rows)

	slog := slog.With("took", time.Since(start), "tagged", r.taggedN.Load(), "mismatches", r.mismatchN.Load(), "errs", r.errN.Load())
	if r.errN.Load() > 0 {
		slog.Error("run finished with errors")
		notifs.Sendf(ctx, notifications.Complete, "run finished with %d errors, %d albums tagged", r.errN.Load(), r.taggedN.Load())
		return
	}
	slog.Info("run finished")
	notifs.Sendf(ctx, notifications.Complete, "run finished, %d albums tagged, %d mismatches", r.taggedN.Load(), r.mismatchN.Load())
}

type run struct {
	id            uuid.UUID
	tagger        *arctag.Tagger
	input, output string
	researchLinks *researchlink.Builder
	notifs        *notifications.Notifications
	journal       *journal.Journal

	mu   sync.Mutex
	rows []row

	taggedN, mismatchN, errN atomic.Uint32
}

func (r *run) processDir(ctx context.Context, dir string) {
	albumName := filepath.Base(dir)
	artistName := filepath.Base(filepath.Dir(dir))

	rel, err := filepath.Rel(r.input, dir)
	if err != nil || rel == "." {
		rel = filepath.Join(artistName, albumName)
	}
	outDir := filepath.Join(r.output, rel)

	report, err := r.tagger.ProcessDir(ctx, dir, outDir, albumName, artistName)
	if report != nil && report.Skipped {
		return
	}

	entry := journal.Entry{RunID: r.id, Dir: dir, Artist: artistName, Album: albumName}
	if report != nil {
		entry.Artist, entry.Album = report.Artist, report.Album
		entry.Tracks = report.Tagged()
		entry.Unmatched = len(report.Unmatched())
	}

	switch {
	case errors.Is(err, provider.ErrUnavailable):
		r.errN.Add(1)
		entry.Status = journal.StatusError
		entry.Error = err.Error()
		slog.ErrorContext(ctx, "catalog unavailable", "dir", dir, "err", err)
		r.notifs.Sendf(ctx, notifications.Error, "%s: %v", dir, err)

	case errors.Is(err, album.ErrMismatch) && report != nil && report.Mismatch != nil:
		r.mismatchN.Add(1)
		entry.Status = journal.StatusMismatch
		entry.FoundAlbum, entry.FoundArtist = report.Mismatch.FoundAlbum, report.Mismatch.FoundArtist
		r.printHint(report)
		r.notifs.Sendf(ctx, notifications.Mismatch, "%s: found %q by %q", dir, report.Mismatch.FoundAlbum, report.Mismatch.FoundArtist)

	case errors.Is(err, album.ErrMismatch), errors.Is(err, provider.ErrNotFound):
		r.mismatchN.Add(1)
		entry.Status = journal.StatusMismatch
		entry.Error = err.Error()
		slog.WarnContext(ctx, "album not in catalog", "dir", dir, "err", err)
		r.printHint(report)
		r.notifs.Sendf(ctx, notifications.Mismatch, "%s: not found", dir)

	case err != nil:
		r.errN.Add(1)
		entry.Status = journal.StatusError
		entry.Error = err.Error()
		slog.ErrorContext(ctx, "processing dir", "dir", dir, "err", err)
		r.notifs.Sendf(ctx, notifications.Error, "%s: %v", dir, err)

	case report.Err() != nil:
		r.errN.Add(1)
		entry.Status = journal.StatusError
		entry.Error = report.Err().Error()
		slog.ErrorContext(ctx, "some files failed", "dir", dir, "tagged", report.Tagged(), "err", report.Err())
		r.notifs.Sendf(ctx, notifications.Error, "%s: %v", dir, report.Err())

	default:
		r.taggedN.Add(1)
		entry.Status = journal.StatusTagged
		slog.InfoContext(ctx, "tagged album", "dir", dir, "dest", outDir, "files", report.Tagged(), "unmatched", len(report.Unmatched()))
	}

	dryRun := report != nil && report.DryRun

	r.mu.Lock()
	r.rows = append(r.rows, row{dir: dir, artist: entry.Artist, album: entry.Album, status: entry.Status, dryRun: dryRun, tracks: entry.Tracks, unmatched: entry.Unmatched})
	r.mu.Unlock()

	if r.journal != nil && !dryRun {
		if err := r.journal.Record(ctx, &entry); err != nil {
			slog.ErrorContext(ctx, "record journal entry", "dir", dir, "err", err)
		}
	}
}

var (
	colorHeading = color.New(color.FgYellow, color.Bold)
	colorDelete  = color.New(color.FgRed)
	colorInsert  = color.New(color.FgGreen)
	colorLink    = color.New(color.FgCyan)
)

func (r *run) printHint(report *arctag.Report) {
	var sb strings.Builder
	colorHeading.Fprintf(&sb, "no match for %s\n", report.InputDir)

	if m := report.Mismatch; m != nil {
		fmt.Fprintf(&sb, "  consider renaming to match the catalog:\n")
		t := table.NewStringWriter()
		score, diffs := diff.Names(m.RequestedAlbum, m.RequestedArtist, m.FoundAlbum, m.FoundArtist)
		for _, d := range diffs {
			fmt.Fprintf(t, "    %s\t%s\t%s\n", d.Field, d.Before, fmtDiff(d.Changes))
		}
		sb.WriteString(t.String())
		fmt.Fprintf(&sb, "    similarity %.0f%%\n", score)
	}

	q := researchlink.Query{Artist: report.Artist, Album: report.Album}
	if m := report.Mismatch; m != nil {
		q.FoundArtist, q.FoundAlbum = m.FoundArtist, m.FoundAlbum
	}
	links, err := r.researchLinks.Build(q)
	if err != nil {
		slog.Error("build research links", "err", err)
	}
	for _, l := range links {
		fmt.Fprintf(&sb, "  %s ", l.Name)
		colorLink.Fprintln(&sb, l.URL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(stdout, sb.String())
}

func fmtDiff(diffs []diffmatchpatch.Diff) string {
	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			colorDelete.Fprint(&sb, d.Text)
		case diffmatchpatch.DiffInsert:
			colorInsert.Fprint(&sb, d.Text)
		default:
			sb.WriteString(d.Text)
		}
	}
	if sb.Len() == 0 {
		return "[empty]"
	}
	return sb.String()
}

type row struct {
	dir, artist, album string
	status             journal.Status
	dryRun             bool
	tracks, unmatched  int
}

func printSummary(w io.Writer, rows []row) {
	if len(rows) == 0 {
		return
	}
	slices.SortFunc(rows, func(a, b row) int {
		return strings.Compare(a.dir, b.dir)
	})

	t := table.NewStringWriter()
	fmt.Fprintf(t, "ARTIST\tALBUM\tSTATUS\tTAGGED\tUNMATCHED\n")
	for _, r := range rows {
		st := string(r.status)
		if r.dryRun && r.status == journal.StatusTagged {
			st = "dry run"
		}
		fmt.Fprintf(t, "%s\t%s\t%s\t%d\t%d\n", r.artist, r.album, st, r.tracks, r.unmatched)
	}
	fmt.Fprint(w, t.String())
}

func printJournal(ctx context.Context, w io.Writer, j *journal.Journal, st journal.Status) error {
	entries, err := j.List(ctx, journal.Filter{Status: st, Limit: 50})
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	t := table.NewStringWriter()
	fmt.Fprintf(t, "TIME\tARTIST\tALBUM\tSTATUS\tTRACKS\tDETAIL\n")
	for _, e := range entries {
		detail := e.Error
		if e.Status == journal.StatusMismatch && e.FoundAlbum != "" {
			detail = fmt.Sprintf("found %q by %q", e.FoundAlbum, e.FoundArtist)
		}
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format(time.DateTime), e.Artist, e.Album, e.Status, strconv.Itoa(e.Tracks), detail)
	}
	fmt.Fprint(w, t.String())
	return nil
}

// lockOutput stops two runs writing the same archive at once.
func lockOutput(output string) (func(), error) {
	if err := os.MkdirAll(output, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	lockPath := filepath.Join(output, lockName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is locked by another run", output)
	}
	if err := (visibility.OS{}).Hide(lockPath); err != nil && !errors.Is(err, visibility.ErrUnsupported) {
		slog.Warn("hide lock file", "path", lockPath, "err", err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("release lock", "err", err)
		}
	}, nil
}

func ctxConsume[T any](ctx context.Context, work <-chan T, f func(T)) {
	for {
		select { // prority select for ctx.Done()
		case <-ctx.Done():
			return
		default:
			select {
			case <-ctx.Done():
				return
			case w, ok := <-work:
				if !ok {
					return
				}
				f(w)
			}
		}
	}
}

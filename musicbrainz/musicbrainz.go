package musicbrainz

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.arctag.dev/arctag/clientutil"
)

var ErrNoResults = errors.New("no results")

type MBClient struct {
	BaseURL   string
	RateLimit time.Duration
	UserAgent string
	Logger    *slog.Logger

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (c *MBClient) request(ctx context.Context, r *http.Request, dest any) error {
	c.initOnce.Do(func() {
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithCache(12*time.Hour),
			clientutil.WithUserAgent(c.UserAgent),
			clientutil.WithRateLimit(c.RateLimit),
			clientutil.WithRetry(3, c.RateLimit),
			clientutil.WithLogging(logger),
		))
	})

	r = r.WithContext(ctx)
	resp, err := c.HTTPClient.Do(r)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("musicbrainz returned non 2xx: %w", StatusError(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *MBClient) GetRelease(ctx context.Context, mbid string) (*Release, error) {
	urlV := url.Values{}
	urlV.Set("fmt", "json")
	urlV.Set("inc", "recordings+artist-credits+release-groups+genres")

	url, _ := url.Parse(joinPath(c.BaseURL, "release", mbid))
	url.RawQuery = urlV.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)

	var sr Release
	if err := c.request(ctx, req, &sr); err != nil {
		return nil, fmt.Errorf("request release: %w", err)
	}

	return &sr, nil
}

type ReleaseQuery struct {
	MBReleaseID string

	Release string
	Artist  string
}

// SearchRelease returns the best scoring release for the query. A valid release MBID skips the search.
func (c *MBClient) SearchRelease(ctx context.Context, q ReleaseQuery) (*Release, error) {
	if _, err := uuid.Parse(q.MBReleaseID); err == nil {
		release, err := c.GetRelease(ctx, q.MBReleaseID)
		if err != nil {
			return nil, fmt.Errorf("get direct release: %w", err)
		}
		return release, nil
	}

	// https://musicbrainz.org/doc/MusicBrainz_API/Search#Release

	var params []string
	if q.Release != "" {
		params = append(params, field("release", strings.ToLower(q.Release)))
	}
	if q.Artist != "" {
		params = append(params, field("artist", strings.ToLower(q.Artist)))
	}
	if len(params) == 0 {
		return nil, ErrNoResults
	}

	urlV := url.Values{}
	urlV.Set("fmt", "json")
	urlV.Set("limit", "1")
	urlV.Set("query", strings.Join(params, " "))

	url, _ := url.Parse(joinPath(c.BaseURL, "release"))
	url.RawQuery = urlV.Encode()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)

	var sr struct {
		Releases []struct {
			ID    string `json:"id"`
			Score int    `json:"score"`
		} `json:"releases"`
	}
	if err := c.request(ctx, req, &sr); err != nil {
		return nil, fmt.Errorf("request release: %w", err)
	}
	if len(sr.Releases) == 0 || sr.Releases[0].ID == "" {
		return nil, ErrNoResults
	}
	releaseKey := sr.Releases[0]

	release, err := c.GetRelease(ctx, releaseKey.ID)
	if err != nil {
		return nil, fmt.Errorf("get release by mbid %s: %w", releaseKey.ID, err)
	}

	return release, nil
}

type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     Artist `json:"artist"`
}

type Artist struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SortName string  `json:"sort-name"`
	Genres   []Genre `json:"genres"`
}

type Genre struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Track struct {
	ID        string `json:"id"`
	Recording struct {
		ID      string         `json:"id"`
		Title   string         `json:"title"`
		Genres  []Genre        `json:"genres"`
		Artists []ArtistCredit `json:"artist-credit"`
	} `json:"recording"`
	Number   string         `json:"number"`
	Position int            `json:"position"`
	Title    string         `json:"title"`
	Artists  []ArtistCredit `json:"artist-credit"`
}

type Media struct {
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks"`
	Pregap     *Track  `json:"pregap,omitempty"`
	Format     string  `json:"format"`
	Position   int     `json:"position"`
}

type Release struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Genres          []Genre `json:"genres"`
	CoverArtArchive struct {
		Artwork bool `json:"artwork"`
		Front   bool `json:"front"`
	} `json:"cover-art-archive"`
	Artists      []ArtistCredit `json:"artist-credit"`
	Date         string         `json:"date"`
	Media        []Media        `json:"media"`
	ReleaseGroup ReleaseGroup   `json:"release-group"`
}

type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate string         `json:"first-release-date"`
	Genres           []Genre        `json:"genres"`
	Artists          []ArtistCredit `json:"artist-credit"`
}

func ArtistsNames(credits []ArtistCredit) []string {
	var r []string
	for _, c := range credits {
		r = append(r, c.Artist.Name)
	}
	return r
}

func ArtistsCreditNames(credits []ArtistCredit) []string {
	var r []string
	for _, c := range credits {
		r = append(r, c.Name)
	}
	return r
}

type TrackPosition struct {
	Disc int
	Track
}

// FlatTracks lists every track of every medium, pregaps included.
func FlatTracks(media []Media) []TrackPosition {
	var tracks []TrackPosition
	for _, m := range media {
		if m.Pregap != nil {
			tracks = append(tracks, TrackPosition{Disc: m.Position, Track: *m.Pregap})
		}
		for _, t := range m.Tracks {
			tracks = append(tracks, TrackPosition{Disc: m.Position, Track: t})
		}
	}
	return tracks
}

// AnyGenres merges the genres of the release, its group, its recordings, and its artists, most voted first.
func AnyGenres(release *Release) []Genre {
	var genres []Genre
	genres = append(genres, release.Genres...)
	genres = append(genres, release.ReleaseGroup.Genres...)
	for _, t := range FlatTracks(release.Media) {
		genres = append(genres, t.Recording.Genres...)
	}
	for _, a := range release.Artists {
		genres = append(genres, a.Artist.Genres...)
	}
	return mergeAndSortGenres(genres)
}

func AnyDate(release *Release) string {
	return cmp.Or(release.Date, release.ReleaseGroup.FirstReleaseDate)
}

func mergeAndSortGenres(genres []Genre) []Genre {
	var out []Genre
	index := map[string]int{}
	for _, g := range genres {
		key := cmp.Or(g.ID, g.Name)
		if i, ok := index[key]; ok {
			out[i].Count += g.Count
			continue
		}
		index[key] = len(out)
		out = append(out, g)
	}
	slices.SortStableFunc(out, func(a, b Genre) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out
}

// https://lucene.apache.org/core/7_7_2/queryparser/org/apache/lucene/queryparser/classic/package-summary.html#Escaping_Special_Characters
var escapeLucene *strings.Replacer

func init() {
	var pairs []string
	for _, c := range []string{`&&`, `||`, `+`, `-`, `!`, `(`, `)`, `{`, `}`, `[`, `]`, `^`, `"`, `~`, `*`, `?`, `:`, `\`, `/`} {
		pairs = append(pairs, c, `\`+c)
	}
	escapeLucene = strings.NewReplacer(pairs...)
}

func field(k string, v any) string {
	vstr := fmt.Sprint(v)
	vstr = escapeLucene.Replace(vstr)
	return fmt.Sprintf("%s:(%v)", k, vstr)
}

func joinPath(base string, p ...string) string {
	r, _ := url.JoinPath(base, p...)
	return r
}

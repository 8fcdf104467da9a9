// Package spotify fetches album metadata from the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"go.arctag.dev/arctag/album"
	"go.arctag.dev/arctag/coverimage"
	"go.arctag.dev/arctag/provider"
)

var ErrNoCredentials = errors.New("no spotify client credentials")

type Config struct {
	ClientID     string
	ClientSecret string

	// Defaults to the public token endpoint and API.
	TokenURL string
	BaseURL  string

	// Used for API, token, and image requests.
	HTTPClient *http.Client

	// Images with a side larger than this are scaled down. 0 keeps them as is.
	CoverMaxSize int
}

type Provider struct {
	client       *spotify.Client
	httpClient   *http.Client
	coverMaxSize int
}

var _ provider.Provider = (*Provider)(nil)

// NewProvider sets up a client authenticated with the client credentials flow. Tokens are fetched
// lazily and refreshed as needed.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNoCredentials
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.HTTPClient)

	var opts []spotify.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:       spotify.New(creds.Client(tokenCtx), opts...),
		httpClient:   cfg.HTTPClient,
		coverMaxSize: cfg.CoverMaxSize,
	}, nil
}

func (p *Provider) FetchAlbum(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
	query := fmt.Sprintf("album:%s artist:%s", albumName, artistName)
	res, err := p.client.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", provider.ErrUnavailable, err)
	}
	if res.Albums == nil || len(res.Albums.Albums) == 0 {
		return nil, fmt.Errorf("%w: %q by %q", provider.ErrNotFound, albumName, artistName)
	}
	found := res.Albums.Albums[0]

	var artistNames []string
	for _, a := range found.Artists {
		artistNames = append(artistNames, a.Name)
	}
	if err := album.Validate(albumName, artistName, album.Found{Album: found.Name, Artists: artistNames}); err != nil {
		return nil, err
	}
	mainArtist := found.Artists[0]

	md := album.New(found.Name, mainArtist.Name)
	md.CoverImage = p.largestImage(ctx, found.Images)

	var genres []string
	artist, err := p.client.GetArtist(ctx, mainArtist.ID)
	if err != nil {
		slog.WarnContext(ctx, "get artist, continuing without genres", "artist", mainArtist.Name, "err", err)
	} else {
		genres = artist.Genres
		md.ArtistImage = p.largestImage(ctx, artist.Images)
	}

	tracks, err := p.client.GetAlbumTracks(ctx, found.ID, spotify.Limit(50))
	if err != nil {
		return nil, fmt.Errorf("%w: get album tracks: %w", provider.ErrUnavailable, err)
	}
	for {
		for _, t := range tracks.Tracks {
			var artists []string
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			md.AddTrack(album.Track{
				Title:       t.Name,
				Artists:     artists,
				TrackNumber: int(t.TrackNumber),
				DiscNumber:  int(t.DiscNumber),
				ReleaseDate: found.ReleaseDate,
				Genres:      genres,
			})
		}
		err := p.client.NextPage(ctx, tracks)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: next tracks page: %w", provider.ErrUnavailable, err)
		}
	}

	return md, nil
}

// largestImage downloads and decodes the widest image. Failures leave the album without that image.
func (p *Provider) largestImage(ctx context.Context, images []spotify.Image) *album.Image {
	if len(images) == 0 {
		return nil
	}
	best := images[0]
	for _, img := range images[1:] {
		if img.Width > best.Width {
			best = img
		}
	}

	data, err := p.download(ctx, best.URL)
	if err != nil {
		slog.WarnContext(ctx, "download image", "url", best.URL, "err", err)
		return nil
	}
	img, err := coverimage.Decode(data, p.coverMaxSize)
	if err != nil {
		slog.WarnContext(ctx, "decode image", "url", best.URL, "err", err)
		return nil
	}
	return img
}

func (p *Provider) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non 2xx status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

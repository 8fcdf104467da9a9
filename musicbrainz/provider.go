package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.arctag.dev/arctag/album"
	"go.arctag.dev/arctag/coverimage"
	"go.arctag.dev/arctag/provider"
)

// Provider looks albums up in MusicBrainz with covers from the Cover Art Archive. MusicBrainz has no
// artist images so the artist image is always left empty.
type Provider struct {
	Client       Client
	CoverMaxSize int
}

var _ provider.Provider = (*Provider)(nil)

func NewProvider(client Client, coverMaxSize int) *Provider {
	return &Provider{Client: client, CoverMaxSize: coverMaxSize}
}

func (p *Provider) FetchAlbum(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
	release, err := p.Client.SearchRelease(ctx, ReleaseQuery{Release: albumName, Artist: artistName})
	if errors.Is(err, ErrNoResults) {
		return nil, fmt.Errorf("%w: %q by %q", provider.ErrNotFound, albumName, artistName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrUnavailable, err)
	}

	found := album.Found{Album: release.Title, Artists: ArtistsNames(release.Artists)}
	if err := album.Validate(albumName, artistName, found); err != nil {
		return nil, err
	}

	var genres []string
	for _, g := range AnyGenres(release) {
		genres = append(genres, g.Name)
	}
	date := AnyDate(release)

	md := album.New(release.Title, found.Artists[0])
	for _, t := range FlatTracks(release.Media) {
		credits := t.Artists
		if len(credits) == 0 {
			credits = t.Recording.Artists
		}
		md.AddTrack(album.Track{
			Title:       t.Title,
			Artists:     ArtistsCreditNames(credits),
			TrackNumber: t.Position,
			DiscNumber:  t.Disc,
			ReleaseDate: date,
			Genres:      genres,
		})
	}

	cover, err := p.Client.GetCover(ctx, release)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "get cover, continuing without", "release", release.ID, "err", err)
	case cover != nil:
		md.CoverImage, err = coverimage.Decode(cover, p.CoverMaxSize)
		if err != nil {
			slog.WarnContext(ctx, "decode cover, continuing without", "release", release.ID, "err", err)
		}
	}

	return md, nil
}

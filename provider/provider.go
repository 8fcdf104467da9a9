// Package provider defines how album metadata is fetched from a catalog.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.arctag.dev/arctag/album"
)

var (
	ErrNotFound    = errors.New("album not found")
	ErrUnavailable = errors.New("catalog unavailable")
)

// Provider fetches and validates the metadata for an album. Implementations return a Metadata
// whose Album and Artist are the names the catalog reported, *album.MismatchError if they don't
// match the requested names, ErrNotFound if the catalog has no candidate, and ErrUnavailable for
// transport or auth failures.
type Provider interface {
	FetchAlbum(ctx context.Context, albumName, artistName string) (*album.Metadata, error)
}

type Func func(ctx context.Context, albumName, artistName string) (*album.Metadata, error)

func (f Func) FetchAlbum(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
	return f(ctx, albumName, artistName)
}

// Chain tries each provider in order and returns the first success. A mismatch is preferred over
// not found or unavailable errors when nothing succeeds, since it carries a correction hint.
type Chain []Provider

func (c Chain) FetchAlbum(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
	if len(c) == 0 {
		return nil, ErrNotFound
	}
	var mismatch error
	var errs []error
	for _, p := range c {
		md, err := p.FetchAlbum(ctx, albumName, artistName)
		if err == nil {
			return md, nil
		}
		if mismatch == nil && errors.Is(err, album.ErrMismatch) {
			mismatch = err
		}
		errs = append(errs, err)
	}
	if mismatch != nil {
		return nil, mismatch
	}
	return nil, errors.Join(errs...)
}

// Static serves fixed metadata keyed by artist and album name, ignoring case.
type Static struct {
	albums map[string]*album.Metadata
}

func (s *Static) Add(md *album.Metadata) {
	if s.albums == nil {
		s.albums = map[string]*album.Metadata{}
	}
	s.albums[staticKey(md.Artist, md.Album)] = md
}

func (s *Static) FetchAlbum(ctx context.Context, albumName, artistName string) (*album.Metadata, error) {
	md, ok := s.albums[staticKey(artistName, albumName)]
	if !ok {
		return nil, fmt.Errorf("%w: %q by %q", ErrNotFound, albumName, artistName)
	}
	return md, nil
}

func staticKey(artist, albumName string) string {
	return strings.ToUpper(artist) + "\x00" + strings.ToUpper(albumName)
}

// Package album holds the per-album metadata model fetched from a catalog, along with the rules
// deciding whether a catalog result really describes the album that was asked for.
package album

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMismatch = errors.New("catalog result does not match requested album")

type Image struct {
	Data          []byte // PNG encoded
	Width, Height int
	Depth         int
}

type Track struct {
	Title       string
	Artists     []string
	TrackNumber int
	DiscNumber  int
	ReleaseDate string
	Genres      []string
}

// Metadata is the model for one album. Album and Artist are the requested names, tracks are keyed
// by their canonical title and kept in catalog order.
type Metadata struct {
	Album  string
	Artist string

	CoverImage  *Image
	ArtistImage *Image

	order  []string
	tracks map[string]Track
}

func New(albumName, mainArtist string) *Metadata {
	return &Metadata{Album: albumName, Artist: mainArtist}
}

// AddTrack adds a track under its canonical title. Adding a title twice replaces the track but
// keeps its original position.
func (m *Metadata) AddTrack(t Track) {
	if m.tracks == nil {
		m.tracks = map[string]Track{}
	}
	if _, ok := m.tracks[t.Title]; !ok {
		m.order = append(m.order, t.Title)
	}
	m.tracks[t.Title] = t
}

func (m *Metadata) Track(title string) (Track, bool) {
	t, ok := m.tracks[title]
	return t, ok
}

// Titles returns the canonical titles in track list order.
func (m *Metadata) Titles() []string {
	return append([]string(nil), m.order...)
}

func (m *Metadata) NumTracks() int { return len(m.order) }

func (m *Metadata) Empty() bool { return len(m.order) == 0 }

// Populate commits fetched data into m. The fetched Album and Artist are the names the catalog
// reported, they are validated against the names m was created with. On failure m is left
// untouched.
func (m *Metadata) Populate(fetched *Metadata) error {
	if err := Validate(m.Album, m.Artist, Found{Album: fetched.Album, Artists: []string{fetched.Artist}}); err != nil {
		return err
	}
	m.CoverImage = fetched.CoverImage
	m.ArtistImage = fetched.ArtistImage
	for _, title := range fetched.order {
		m.AddTrack(fetched.tracks[title])
	}
	return nil
}

// Reset drops all fetched data, leaving only the requested names.
func (m *Metadata) Reset() {
	m.CoverImage, m.ArtistImage = nil, nil
	m.order, m.tracks = nil, nil
}

// Found is what a catalog reported for a lookup, before any data is committed.
type Found struct {
	Album   string
	Artists []string
}

type MismatchError struct {
	RequestedAlbum, RequestedArtist string
	FoundAlbum, FoundArtist         string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: requested %q by %q, found %q by %q",
		ErrMismatch, e.RequestedAlbum, e.RequestedArtist, e.FoundAlbum, e.FoundArtist)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Validate checks a catalog result against the requested names. The result needs at least one
// artist, and both its album name and first artist name must equal the requested ones ignoring
// case. Partial matches are rejected.
func Validate(requestedAlbum, requestedArtist string, found Found) error {
	var foundArtist string
	if len(found.Artists) > 0 {
		foundArtist = found.Artists[0]
	}
	if foundArtist == "" ||
		!strings.EqualFold(found.Album, requestedAlbum) ||
		!strings.EqualFold(foundArtist, requestedArtist) {
		return &MismatchError{
			RequestedAlbum:  requestedAlbum,
			RequestedArtist: requestedArtist,
			FoundAlbum:      found.Album,
			FoundArtist:     foundArtist,
		}
	}
	return nil
}

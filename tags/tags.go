// Package tags writes the archive's fixed set of fields and a front cover picture into audio
// files, choosing a codec by file extension.
package tags

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// https://picard-docs.musicbrainz.org/downloads/MusicBrainz_Picard_Tag_Map.html

const (
	Title       = "TITLE"
	Album       = "ALBUM"
	AlbumArtist = "ALBUMARTIST"
	Artist      = "ARTIST"
	Date        = "DATE"
	TrackNumber = "TRACKNUMBER"
	DiscNumber  = "DISCNUMBER"
	Genre       = "GENRE"
)

var Fields = []string{Title, Album, AlbumArtist, Artist, Date, TrackNumber, DiscNumber, Genre}

func IsField(field string) bool {
	return slices.Contains(Fields, strings.ToUpper(field))
}

var (
	ErrWrite            = errors.New("error writing tags")
	ErrUnsupported      = errors.New("filetype unsupported")
	ErrUnsupportedField = errors.New("field unsupported")
)

type PictureType byte

// https://www.w3.org/2014/09/bitstream/id3v2.4-frames.txt (APIC), same codes in FLAC PICTURE
const (
	PictureOther      PictureType = 0x00
	PictureFrontCover PictureType = 0x03
)

type Picture struct {
	Type          PictureType
	MIME          string
	Width, Height int
	Depth         int
	Data          []byte
}

// File is an open tag container. Set replaces every value of a field, EmbedPicture replaces any
// existing picture of the same type. Nothing reaches disk until Save. Setting a field outside
// Fields makes Save fail with ErrUnsupportedField.
type File interface {
	Set(field string, values ...string)
	EmbedPicture(p Picture)
	Save() error
	Close() error
}

type Writer interface {
	CanWrite(path string) bool
	Open(path string) (File, error)
}

// Codecs dispatches to a Writer by lower case file extension.
type Codecs map[string]Writer

func Default() Codecs {
	return Codecs{
		".flac": FLAC{},
		".mp3":  MP3{},
	}
}

func (c Codecs) CanWrite(path string) bool {
	w, ok := c[ext(path)]
	return ok && w.CanWrite(path)
}

func (c Codecs) Open(path string) (File, error) {
	w, ok := c[ext(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(path))
	}
	return w.Open(path)
}

func (c Codecs) Extensions() []string {
	return slices.Sorted(maps.Keys(c))
}

// Tags is a read back view of a file, used to check what was written.
type Tags struct {
	Fields   map[string][]string
	Pictures []Picture
}

func (t Tags) Get(field string) string {
	if vs := t.Fields[strings.ToUpper(field)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (t Tags) Values(field string) []string {
	return t.Fields[strings.ToUpper(field)]
}

func (t Tags) FrontCover() (Picture, bool) {
	for _, p := range t.Pictures {
		if p.Type == PictureFrontCover {
			return p, true
		}
	}
	return Picture{}, false
}

func Read(path string) (Tags, error) {
	switch ext(path) {
	case ".flac":
		return readFLAC(path)
	case ".mp3":
		return readMP3(path)
	}
	return Tags{}, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(path))
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

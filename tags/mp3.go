package tags

import (
	"fmt"
	"strings"

	"github.com/bogem/id3v2"
)

// ID3v2.4 frames for the fields we write. Multiple values are NUL separated, as the 2.4 spec
// allows for text frames.
var id3Frames = map[string]string{
	Title:       "TIT2",
	Album:       "TALB",
	AlbumArtist: "TPE2",
	Artist:      "TPE1",
	Date:        "TDRC",
	TrackNumber: "TRCK",
	DiscNumber:  "TPOS",
	Genre:       "TCON",
}

const id3Sep = "\x00"

type MP3 struct{}

func (MP3) CanWrite(path string) bool { return ext(path) == ".mp3" }

func (MP3) Open(path string) (File, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open id3: %w", ErrWrite, err)
	}
	tag.SetVersion(4)
	return &mp3File{tag: tag}, nil
}

type mp3File struct {
	tag    *id3v2.Tag
	setErr error
}

func (f *mp3File) Set(field string, values ...string) {
	field = strings.ToUpper(field)
	id, ok := id3Frames[field]
	if !ok {
		if f.setErr == nil {
			f.setErr = fmt.Errorf("%w: %s", ErrUnsupportedField, field)
		}
		return
	}
	f.tag.DeleteFrames(id)
	if len(values) == 0 {
		return
	}
	f.tag.AddTextFrame(id, id3v2.EncodingUTF8, strings.Join(values, id3Sep))
}

// EmbedPicture adds an APIC frame. ID3 has no room for the picture's dimensions or depth.
func (f *mp3File) EmbedPicture(p Picture) {
	apic := f.tag.CommonID("Attached picture")

	var kept []id3v2.PictureFrame
	for _, fr := range f.tag.GetFrames(apic) {
		if pf, ok := fr.(id3v2.PictureFrame); ok && PictureType(pf.PictureType) != p.Type {
			kept = append(kept, pf)
		}
	}
	f.tag.DeleteFrames(apic)
	for _, pf := range kept {
		f.tag.AddAttachedPicture(pf)
	}
	f.tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    p.MIME,
		PictureType: byte(p.Type),
		Description: "",
		Picture:     p.Data,
	})
}

func (f *mp3File) Save() error {
	if f.setErr != nil {
		return fmt.Errorf("%w: %w", ErrWrite, f.setErr)
	}
	if err := f.tag.Save(); err != nil {
		return fmt.Errorf("%w: save id3: %w", ErrWrite, err)
	}
	return nil
}

func (f *mp3File) Close() error {
	return f.tag.Close()
}

func readMP3(path string) (Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, fmt.Errorf("open id3: %w", err)
	}
	defer tag.Close()

	t := Tags{Fields: map[string][]string{}}
	for field, id := range id3Frames {
		if tf := tag.GetTextFrame(id); tf.Text != "" {
			t.Fields[field] = strings.Split(tf.Text, id3Sep)
		}
	}
	for _, fr := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pf, ok := fr.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		t.Pictures = append(t.Pictures, Picture{
			Type: PictureType(pf.PictureType),
			MIME: pf.MimeType,
			Data: pf.Picture,
		})
	}
	return t, nil
}

package tags

import (
	"fmt"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

type FLAC struct{}

func (FLAC) CanWrite(path string) bool { return ext(path) == ".flac" }

func (FLAC) Open(path string) (File, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: parse flac: %w", ErrWrite, err)
	}

	ff := &flacFile{path: path, file: f, comments: flacvorbis.New()}
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, fmt.Errorf("%w: parse vorbis comment: %w", ErrWrite, err)
			}
			ff.comments = cmts
		case flac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, fmt.Errorf("%w: parse picture: %w", ErrWrite, err)
			}
			ff.pictures = append(ff.pictures, pic)
		default:
			ff.other = append(ff.other, block)
		}
	}
	return ff, nil
}

type flacFile struct {
	path     string
	file     *flac.File
	comments *flacvorbis.MetaDataBlockVorbisComment
	pictures []*flacpicture.MetadataBlockPicture
	other    []*flac.MetaDataBlock
	setErr   error
}

func (f *flacFile) Set(field string, values ...string) {
	field = strings.ToUpper(field)
	if !IsField(field) {
		if f.setErr == nil {
			f.setErr = fmt.Errorf("%w: %s", ErrUnsupportedField, field)
		}
		return
	}
	prefix := field + "="

	kept := f.comments.Comments[:0]
	for _, c := range f.comments.Comments {
		if !strings.HasPrefix(strings.ToUpper(c), prefix) {
			kept = append(kept, c)
		}
	}
	f.comments.Comments = kept

	for _, v := range values {
		if err := f.comments.Add(field, v); err != nil && f.setErr == nil {
			f.setErr = fmt.Errorf("add %s: %w", field, err)
		}
	}
}

func (f *flacFile) EmbedPicture(p Picture) {
	kept := f.pictures[:0]
	for _, pic := range f.pictures {
		if PictureType(pic.PictureType) != p.Type {
			kept = append(kept, pic)
		}
	}
	f.pictures = append(kept, &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureType(p.Type),
		MIME:        p.MIME,
		Description: "",
		Width:       uint32(p.Width),
		Height:      uint32(p.Height),
		ColorDepth:  uint32(p.Depth),
		ImageData:   p.Data,
	})
}

func (f *flacFile) Save() error {
	if f.setErr != nil {
		return fmt.Errorf("%w: %w", ErrWrite, f.setErr)
	}

	meta := append([]*flac.MetaDataBlock(nil), f.other...)
	cmtsBlock := f.comments.Marshal()
	meta = append(meta, &cmtsBlock)
	for _, pic := range f.pictures {
		picBlock := pic.Marshal()
		meta = append(meta, &picBlock)
	}
	f.file.Meta = meta

	if err := f.file.Save(f.path); err != nil {
		return fmt.Errorf("%w: save flac: %w", ErrWrite, err)
	}
	return nil
}

func (f *flacFile) Close() error { return nil }

func readFLAC(path string) (Tags, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return Tags{}, fmt.Errorf("parse flac: %w", err)
	}

	t := Tags{Fields: map[string][]string{}}
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return Tags{}, fmt.Errorf("parse vorbis comment: %w", err)
			}
			for _, c := range cmts.Comments {
				k, v, ok := strings.Cut(c, "=")
				if !ok {
					continue
				}
				k = strings.ToUpper(k)
				t.Fields[k] = append(t.Fields[k], v)
			}
		case flac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				return Tags{}, fmt.Errorf("parse picture: %w", err)
			}
			t.Pictures = append(t.Pictures, Picture{
				Type:   PictureType(pic.PictureType),
				MIME:   pic.MIME,
				Width:  int(pic.Width),
				Height: int(pic.Height),
				Depth:  int(pic.ColorDepth),
				Data:   pic.ImageData,
			})
		}
	}
	return t, nil
}

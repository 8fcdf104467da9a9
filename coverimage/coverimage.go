// Package coverimage turns fetched image bytes into the PNG blobs that are written next to albums
// and embedded in tracks.
package coverimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"go.arctag.dev/arctag/album"
)

var ErrEmpty = errors.New("empty image data")

// Decode decodes data in any registered format and re-encodes it as PNG. If maxSize is more than
// zero, images with a side larger than it are scaled down to fit, keeping their aspect ratio.
func Decode(data []byte, maxSize int) (*album.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = fit(img, maxSize)
	return FromImage(img)
}

// FromImage encodes img as PNG and records its dimensions and sample depth.
func FromImage(img image.Image) (*album.Image, error) {
	var buff bytes.Buffer
	if err := png.Encode(&buff, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	bounds := img.Bounds()
	return &album.Image{
		Data:   buff.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Depth:  Depth(img),
	}, nil
}

// Depth is 16 for images with 16 bit samples, 8 otherwise.
func Depth(img image.Image) int {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16, *image.Alpha16:
		return 16
	}
	return 8
}

func fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}
	if width >= height {
		height = max(1, height*maxSize/width)
		width = maxSize
	} else {
		width = max(1, width*maxSize/height)
		height = maxSize
	}

	var dst draw.Image
	if Depth(img) == 16 {
		dst = image.NewNRGBA64(image.Rect(0, 0, width, height))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, width, height))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

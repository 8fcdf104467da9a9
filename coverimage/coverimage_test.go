package coverimage_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.arctag.dev/arctag/coverimage"
)

func TestDecodeJPEG(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 30, 20))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buff bytes.Buffer
	require.NoError(t, jpeg.Encode(&buff, src, nil))

	img, err := coverimage.Decode(buff.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 20, img.Height)
	assert.Equal(t, 8, img.Depth)

	_, format, err := image.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestDecodeDepth16(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA64(image.Rect(0, 0, 4, 4))
	var buff bytes.Buffer
	require.NoError(t, png.Encode(&buff, src))

	img, err := coverimage.Decode(buff.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Depth)
}

func TestDecodeFit(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	var buff bytes.Buffer
	require.NoError(t, png.Encode(&buff, src))

	img, err := coverimage.Decode(buff.Bytes(), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Width)
	assert.Equal(t, 25, img.Height)

	cfg, err := png.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestDecodeBad(t *testing.T) {
	t.Parallel()

	_, err := coverimage.Decode(nil, 0)
	require.ErrorIs(t, err, coverimage.ErrEmpty)

	_, err = coverimage.Decode([]byte("not an image"), 0)
	require.Error(t, err)
}

// Package tagstest builds minimal audio files for tests.
package tagstest

import (
	"bytes"
	"os"
	"path/filepath"
)

// EmptyFLAC is a FLAC stream with a STREAMINFO block (4096 sample blocks, 44.1kHz, stereo, 16 bit)
// and no frames.
var EmptyFLAC = []byte{
	'f', 'L', 'a', 'C',
	0x80, 0x00, 0x00, 0x22, // last block, STREAMINFO, length 34
	0x10, 0x00, 0x10, 0x00, // min/max block size
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // min/max frame size
	0x0a, 0xc4, 0x42, 0xf0, 0x00, 0x00, 0x00, 0x00, // rate, channels, depth, samples
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // md5
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// EmptyMP3 is a single silent MPEG-1 Layer III frame header padded out, with no ID3 tag.
var EmptyMP3 = append([]byte{0xff, 0xfb, 0x90, 0x64}, bytes.Repeat([]byte{0}, 413)...)

// Write writes data to dir/name, creating parent directories.
func Write(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ForExt returns the empty file for an extension, defaulting to FLAC.
func ForExt(ext string) []byte {
	if ext == ".mp3" {
		return EmptyMP3
	}
	return EmptyFLAC
}

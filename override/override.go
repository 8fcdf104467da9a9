// Package override reads the optional arctag.yaml file an album directory can carry to correct the
// names looked up in the catalog.
package override

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"go.arctag.dev/arctag/fileutil"
)

const dirPat = "arctag.y*ml"

type Override struct {
	Artist string `yaml:"artist"`
	Album  string `yaml:"album"`
}

// Find parses the override file in dir. A directory without one returns nil and no error.
func Find(dir string) (*Override, error) {
	matches, err := fileutil.GlobBase(dir, dirPat)
	if err != nil {
		return nil, fmt.Errorf("glob for override file: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	res, err := Parse(matches[0])
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return res, nil
}

func Parse(path string) (*Override, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var res Override
	// empty files decode to io.EOF
	if err := yaml.NewDecoder(f).Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode override file: %w", err)
	}
	res.Artist = strings.TrimSpace(res.Artist)
	res.Album = strings.TrimSpace(res.Album)
	return &res, nil
}

// Apply returns the names to search for, preferring the override's non empty fields.
func (o *Override) Apply(albumName, artistName string) (string, string) {
	if o == nil {
		return albumName, artistName
	}
	if o.Album != "" {
		albumName = o.Album
	}
	if o.Artist != "" {
		artistName = o.Artist
	}
	return albumName, artistName
}

func (o *Override) String() string {
	return fmt.Sprintf("%s - %s", o.Artist, o.Album)
}

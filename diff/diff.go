// Package diff compares the names a user asked for with the names a catalog returned.
package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

type Diff struct {
	Field         string
	Before, After string
	Changes       []diffmatchpatch.Diff
}

// Equal reports whether the diff has no insertions or deletions.
func (d Diff) Equal() bool {
	for _, c := range d.Changes {
		if c.Type != diffmatchpatch.DiffEqual {
			return false
		}
	}
	return true
}

// Names diffs the requested album and artist against the found ones. The score is the percentage of
// found characters left unchanged.
func Names(requestedAlbum, requestedArtist, foundAlbum, foundArtist string) (float64, []Diff) {
	dmp := diffmatchpatch.New()

	var charsTotal int
	var charsDiff int
	add := func(f, a, b string) Diff {
		diffs := dmp.DiffMain(a, b, false)
		charsTotal += len([]rune(b))
		charsDiff += dmp.DiffLevenshtein(diffs)
		return Diff{Field: f, Changes: diffs, Before: a, After: b}
	}

	diffs := []Diff{
		add("album", requestedAlbum, foundAlbum),
		add("artist", requestedArtist, foundArtist),
	}
	if charsTotal == 0 {
		return 0, diffs
	}

	score := 100 - (float64(charsDiff) * 100 / float64(charsTotal))
	return max(score, 0), diffs
}

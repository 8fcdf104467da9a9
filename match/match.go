// Package match associates loosely named local files with canonical track titles.
package match

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalise returns the alphanumeric skeleton of s, upper cased. Every rune that is not a letter
// or a digit is dropped. s is composed to NFC first, so decomposed names such as the ones macOS
// stores keep their accented letters.
func Normalise(s string) string {
	s = strings.ToUpper(norm.NFC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Template is the normalised base name of path without its extension.
func Template(path string) string {
	base := filepath.Base(path)
	return Normalise(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Associate maps each path in files to the first title, in the order given, whose normalised form
// is contained in the path's template. Files without a match are left out of the result.
//
// The first match wins, not the best one. With titles "Intro" then "Introduction", a file named
// "Introduction.flac" maps to "Intro".
//
// A title with no letters or digits normalises to "" and so matches every file that reaches it.
func Associate(files []string, titles []string) map[string]string {
	normTitles := make([]string, len(titles))
	for i, t := range titles {
		normTitles[i] = Normalise(t)
	}

	out := make(map[string]string, len(files))
	for _, file := range files {
		template := Template(file)
		for i, nt := range normTitles {
			if strings.Contains(template, nt) {
				out[file] = titles[i]
				break
			}
		}
	}
	return out
}

// Unmatched returns the files in files that have no entry in associations, in the same order.
func Unmatched(files []string, associations map[string]string) []string {
	var r []string
	for _, f := range files {
		if _, ok := associations[f]; !ok {
			r = append(r, f)
		}
	}
	return r
}

// Collisions groups files by the title they were associated with, keeping only titles claimed by
// more than one file. File order follows files.
func Collisions(files []string, associations map[string]string) map[string][]string {
	byTitle := map[string][]string{}
	for _, f := range files {
		if title, ok := associations[f]; ok {
			byTitle[title] = append(byTitle[title], f)
		}
	}
	for title, fs := range byTitle {
		if len(fs) < 2 {
			delete(byTitle, title)
		}
	}
	return byTitle
}

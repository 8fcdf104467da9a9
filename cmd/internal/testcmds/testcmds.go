// Package testcmds has small commands for testscript scripts to set up and inspect archives.
package testcmds

import (
	"bytes"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.arctag.dev/arctag/fileutil"
	"go.arctag.dev/arctag/tags"
	"go.arctag.dev/arctag/tags/tagstest"
)

// Audio creates empty but valid audio files, picking the format from the extension.
func Audio() {
	flag.Parse()

	for _, p := range flag.Args() {
		if _, err := tagstest.Write(filepath.Dir(p), filepath.Base(p), tagstest.ForExt(strings.ToLower(filepath.Ext(p)))); err != nil {
			log.Fatalf("write audio: %v", err)
		}
	}
}

// Tag writes or checks fields, as "tag write|check <pattern> FIELD value... , FIELD value...".
func Tag() {
	flag.Parse()

	op := flag.Arg(0)
	switch op {
	case "write", "check":
	default:
		log.Fatalf("bad op %s", op)
	}

	pat := flag.Arg(1)
	paths := parsePattern(pat)
	if len(paths) == 0 {
		log.Fatalf("no paths to match pattern")
	}

	pairs := parseTagMap(flag.Args()[2:])
	for field := range pairs {
		if !tags.IsField(field) {
			log.Fatalf("unsupported field %s", field)
		}
	}

	var exit int
	for _, p := range paths {
		switch op {
		case "write":
			f, err := tags.Default().Open(p)
			if err != nil {
				log.Fatalf("open tag file: %v", err)
			}
			for t, vs := range pairs {
				f.Set(t, vs...)
			}
			if err := f.Save(); err != nil {
				log.Fatalf("write tag file: %v", err)
			}
			f.Close()

		case "check":
			t, err := tags.Read(p)
			if err != nil {
				log.Fatalf("read tag file: %v", err)
			}
			for k, vs := range pairs {
				if got := t.Values(k); !slices.Equal(vs, got) {
					log.Printf("%s exp %q got %q", p, vs, got)
					exit = 1
				}
			}
		}
	}

	os.Exit(exit)
}

// Cover checks the embedded front cover of each file matching a pattern equals the bytes of a file.
func Cover() {
	flag.Parse()

	paths := parsePattern(flag.Arg(0))
	if len(paths) == 0 {
		log.Fatalf("no paths to match pattern")
	}
	want, err := os.ReadFile(flag.Arg(1))
	if err != nil {
		log.Fatalf("read cover: %v", err)
	}

	var exit int
	for _, p := range paths {
		t, err := tags.Read(p)
		if err != nil {
			log.Fatalf("read tag file: %v", err)
		}
		pic, ok := t.FrontCover()
		if !ok {
			log.Printf("%s has no front cover", p)
			exit = 1
			continue
		}
		if !bytes.Equal(pic.Data, want) {
			log.Printf("%s front cover differs from %s", p, flag.Arg(1))
			exit = 1
			continue
		}
		fmt.Printf("%s %dx%d %d\n", filepath.Base(p), pic.Width, pic.Height, pic.Depth)
	}

	os.Exit(exit)
}

func Find() {
	maxDepth := flag.Int("max-depth", -1, "")
	flag.Parse()

	paths := flag.Args()
	sort.Strings(paths)

	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			path = filepath.Clean(path)
			if *maxDepth != -1 && strings.Count(path, string(filepath.Separator)) > *maxDepth {
				return nil
			}
			fmt.Println(path)
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
	}
}

func Touch() {
	flag.Parse()

	for _, p := range flag.Args() {
		if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
			log.Fatalf("mkdirall: %v", err)
		}
		f, err := os.Create(p)
		if err != nil {
			log.Fatalf("err creating: %v", err)
		}
		f.Close()
	}
}

func parsePattern(pat string) []string {
	// assume the file exists if the pattern doesn't look like a glob
	if fileutil.GlobEscape(pat) == pat {
		return []string{pat}
	}
	paths, _ := filepath.Glob(pat)
	return paths
}

func parseTagMap(args []string) map[string][]string {
	r := make(map[string][]string)
	var k string
	for _, v := range args {
		if v == "," {
			k = ""
			continue
		}
		if k == "" {
			k = v
			r[k] = nil
			continue
		}
		r[k] = append(r[k], v)
	}
	return r
}

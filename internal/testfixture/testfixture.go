// Package testfixture builds small, deterministic in-memory catalog trees
// for use in other packages' tests, the role distribution's testutil
// package plays for its own suite (MakeManifestList and friends build a
// synthetic manifest on demand rather than loading one from disk). There is
// no equivalent pre-built corpus for audio catalogs, so this package builds
// trees on demand from a flat file-content map instead of shipping canned
// binary fixtures.
package testfixture

import (
	"path/filepath"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

// Files maps a path relative to the catalog root to its content.
type Files map[string]string

// Build materializes files into a fresh in-memory filesystem and returns
// it, rooted at ".".
func Build(files Files) (billy.Filesystem, error) {
	fs := memfs.New()
	for path, content := range files {
		if dir := filepath.Dir(path); dir != "." {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f, err := fs.Create(path)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte(content)); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// SoloArtist returns the Files for a minimal catalog holding one artist
// directory with no release underneath it, enough to exercise manifest
// cascading and artist resolution without a release in the way.
func SoloArtist(artistName string) Files {
	return Files{
		"catalog.eno":              "title: Test Catalog\n",
		artistName + "/artist.eno": "title: " + artistName + "\n",
	}
}

// Release returns the Files for a minimal catalog holding one release
// directory with trackCount placeholder ".mp3" tracks. The tracks carry
// no valid ID3 data; internal/audiometa treats an unparsable tag block as
// "untagged", not an error, so the release still builds with titles
// derived from the track filenames.
func Release(releaseTitle string, trackCount int) Files {
	files := Files{
		"catalog.eno":                  "title: Test Catalog\n",
		releaseTitle + "/release.eno":  "title: " + releaseTitle + "\n",
	}
	for i := 1; i <= trackCount; i++ {
		name := releaseTitle + "/" + trackDigits(i) + " track.mp3"
		files[name] = "not a real mp3, placeholder fixture bytes"
	}
	return files
}

func trackDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

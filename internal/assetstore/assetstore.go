// Package assetstore implements the flat, content-addressed cache directory
// layout: a version-marker file, sidecar manifests whose filename encodes a
// kind tag, and everything else treated as an opaque produced asset. The
// split mirrors distribution's registry/storage blobStore/manifestStore
// pair: a content-addressed blob store for the opaque payloads plus a
// separate store for the metadata that describes them, adapted here to a
// single flat directory since there is no repository hierarchy to mirror.
package assetstore

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/faircamp-go/faircamp/internal/fsx"
)

// CacheSchemaVersion is bumped whenever the on-disk manifest layout changes.
// Bumping it changes the version marker filename, which makes any existing
// cache directory appear incompatible and triggers a full wipe on next open.
const CacheSchemaVersion = 1

// Kind classifies one manifest file by the sidecar extension it carries.
type Kind string

const (
	KindArchives   Kind = "archives"
	KindImages     Kind = "images"
	KindTranscodes Kind = "transcodes"
)

// manifestExt builds the per-kind, per-schema-version sidecar extension,
// e.g. ".transcodes1.gob". Encoding is gob rather than a third-party binary
// codec; see DESIGN.md for why (the one stdlib exception in this package).
func manifestExt(kind Kind) string {
	return fmt.Sprintf(".%s%d.gob", kind, CacheSchemaVersion)
}

func versionMarkerName() string {
	return fmt.Sprintf("cache%d.marker", CacheSchemaVersion)
}

// Store is the low-level cache-directory accessor: list, read, write,
// remove. It knows nothing about Archives/Images/Transcodes semantics —
// that's the cache package's job.
type Store struct {
	fs  billy.Filesystem
	dir string
}

// Open ensures dir exists and carries the current version marker. If the
// marker is absent and the directory already has content, the entire cache
// is wiped. wiped reports whether a wipe
// happened, for logging.
func Open(fs billy.Filesystem, dir string) (store *Store, wiped bool, err error) {
	marker := join(dir, versionMarkerName())

	if fsx.Exists(fs, marker) {
		return &Store{fs: fs, dir: dir}, false, nil
	}

	hadContent := false
	if entries, err := fs.ReadDir(dir); err == nil && len(entries) > 0 {
		hadContent = true
	}

	if hadContent {
		if err := fsx.EnsureEmptyDir(fs, dir); err != nil {
			return nil, false, fmt.Errorf("assetstore: wiping incompatible cache: %w", err)
		}
	} else if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("assetstore: creating cache dir: %w", err)
	}

	if err := fsx.AtomicWriteFile(fs, marker, nil); err != nil {
		return nil, false, fmt.Errorf("assetstore: writing version marker: %w", err)
	}

	return &Store{fs: fs, dir: dir}, hadContent, nil
}

// Manifest is one manifest file discovered by List, not yet deserialized.
type Manifest struct {
	Name string
	Kind Kind
}

// Listing is the raw content of the cache directory, classified by List
// into manifests, asset files, and any subdirectories that don't belong.
type Listing struct {
	// IncompatibleDirs are subdirectories found at the cache root; the
	// current schema never creates any, so their presence means an older, incompatible layout.
	IncompatibleDirs []string
	Manifests        []Manifest
	// Assets maps asset filename to a "used" flag, initialized false, for
	// the caller to mark true as manifests reference them.
	Assets map[string]bool
}

// List enumerates the cache directory once, classifying every entry by
// name suffix.
func (s *Store) List() (Listing, error) {
	listing := Listing{Assets: map[string]bool{}}

	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return listing, fmt.Errorf("assetstore: reading cache dir: %w", err)
	}

	marker := versionMarkerName()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			listing.IncompatibleDirs = append(listing.IncompatibleDirs, name)
			continue
		}
		if name == marker {
			continue
		}
		if kind, ok := classify(name); ok {
			listing.Manifests = append(listing.Manifests, Manifest{Name: name, Kind: kind})
			continue
		}
		if strings.HasSuffix(name, ".gob") {
			// A manifest-shaped name with an unrecognized kind tag: treat
			// it as incompatible rather than as an asset.
			listing.Manifests = append(listing.Manifests, Manifest{Name: name, Kind: ""})
			continue
		}
		listing.Assets[name] = false
	}

	return listing, nil
}

func classify(name string) (Kind, bool) {
	for _, k := range []Kind{KindArchives, KindImages, KindTranscodes} {
		if strings.HasSuffix(name, manifestExt(k)) {
			return k, true
		}
	}
	return "", false
}

// RemoveIncompatibleDir removes a subdirectory found at the cache root that
// the current schema never creates, i.e. leftover layout from an older version.
func (s *Store) RemoveIncompatibleDir(name string) error {
	return fsx.EnsureEmptyDir(s.fs, join(s.dir, name))
}

// ReadManifest returns the raw bytes of a manifest file.
func (s *Store) ReadManifest(name string) ([]byte, error) {
	f, err := s.fs.Open(join(s.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

// WriteManifest writes data to an asset-store-relative manifest name,
// atomically.
func (s *Store) WriteManifest(name string, data []byte) error {
	return fsx.AtomicWriteFile(s.fs, join(s.dir, name), data)
}

// ManifestName derives a manifest filename from a content hash and its
// kind.
func ManifestName(kind Kind, idHash string) string {
	return idHash + manifestExt(kind)
}

// AssetPath returns the cache-directory-relative path for an asset file.
func (s *Store) AssetPath(filename string) string {
	return join(s.dir, filename)
}

// Remove deletes a file (manifest or asset) from the cache directory.
// Missing files are not an error: removal is used in best-effort cleanup
// paths throughout the cache engine.
func (s *Store) Remove(name string) error {
	err := s.fs.Remove(join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FileSystem exposes the underlying filesystem for callers (the cache
// engine's produce steps) that need to write new asset files directly.
func (s *Store) FileSystem() billy.Filesystem { return s.fs }

// Dir returns the cache root directory path.
func (s *Store) Dir() string { return s.dir }

func join(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}

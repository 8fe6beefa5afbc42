// Package catalog walks a catalog directory tree, classifies its entries,
// and builds the Artist/Release/Track entity graph that the rest of a
// build operates on. It owns permalink uniqueness and artist identity; it
// delegates manifest parsing to internal/eno and internal/manifest and
// asset lookups to internal/cache.
package catalog

import (
	"github.com/faircamp-go/faircamp/internal/arena"
	"github.com/faircamp-go/faircamp/internal/manifest"
)

// UnknownArtistName is the sentinel used when a track carries no artist
// metadata at all and no override supplies one.
const UnknownArtistName = "Unknown Artist"

// Artist is a resolved artist entity, shared by reference (via ArtistRef)
// across every Release and Track that names it.
type Artist struct {
	Name      string
	Aliases   []string
	Permalink Permalink
	Text      string
	Image     arena.Handle // into Cache.Images; meaningful only when HasImage is set
	HasImage  bool
}

// ArtistRef is a stable reference into Catalog.Artists.
type ArtistRef int

// Track is one audio file resolved into the catalog, with its artists,
// cache handle, and effective per-track options.
type Track struct {
	Artists     []ArtistRef
	Title       string
	SourcePath  string
	TrackNumber int
	HasTrackNum bool
	Transcodes  arena.Handle // into Catalog's cache.Cache.Transcodes
	Cover       arena.Handle
	HasCover    bool
	Payment     *manifest.PaymentOption
}

// Release is one release directory resolved into the catalog.
type Release struct {
	Artists      []ArtistRef
	Title        string
	Permalink    Permalink
	Tracks       []Track
	Cover        arena.Handle
	HasCover     bool
	Extras       []string
	Archives     arena.Handle
	HasArchives  bool
	Overrides    manifest.Overrides
	Local        manifest.Local
	Unlisted     bool
	DownloadOpt  manifest.DownloadOption
	SourceDir    string
}

// Catalog is the full resolved entity graph for one build.
type Catalog struct {
	Artists     []Artist
	Releases    []Release
	// StrayImages holds images found in directories that are neither a
	// release (no audio) nor an artist directory (no artist.eno) — kept for
	// future label-cover use but not otherwise wired into output.
	StrayImages []arena.Handle
	Globals     *manifest.Globals
	Title       string
	Text        string
	permalinks  *Registry
	artistIndex map[string]ArtistRef
}

func newCatalog() *Catalog {
	return &Catalog{
		Globals:     manifest.NewGlobals(),
		permalinks:  NewRegistry(),
		artistIndex: map[string]ArtistRef{},
	}
}

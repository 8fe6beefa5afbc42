package cache

import (
	"sync"
	"time"

	"github.com/faircamp-go/faircamp/internal/fingerprint"
)

// CoverVariant is one produced square cover-image size.
type CoverVariant struct {
	EdgeSize int
	Asset    Asset
}

// ArtistVariant is one produced rectangular artist-image size.
type ArtistVariant struct {
	Width, Height int
	Asset         Asset
}

// ImageSet is the cache record for one source image: up to four
// optional produced variant groups.
type ImageSet struct {
	mu sync.RWMutex

	Fingerprint fingerprint.Fingerprint

	CoverAssets  []CoverVariant
	ArtistAssets []ArtistVariant
	Background   *Asset
	Feed         *Asset
}

type imageSetGob struct {
	Fingerprint  fingerprint.Fingerprint
	CoverAssets  []CoverVariant
	ArtistAssets []ArtistVariant
	Background   *Asset
	Feed         *Asset
}

func newImageSet(fp fingerprint.Fingerprint) *ImageSet {
	return &ImageSet{Fingerprint: fp}
}

// Empty reports whether no variant has been produced at all, in which case
// the manifest is dropped during retrieval.
func (i *ImageSet) Empty() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.CoverAssets) == 0 && len(i.ArtistAssets) == 0 && i.Background == nil && i.Feed == nil
}

// SetCover replaces the full set of cover variants.
func (i *ImageSet) SetCover(variants []CoverVariant) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.CoverAssets = variants
}

// SetArtist replaces the full set of artist variants.
func (i *ImageSet) SetArtist(variants []ArtistVariant) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ArtistAssets = variants
}

// SetBackground registers the single background asset.
func (i *ImageSet) SetBackground(a *Asset) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Background = a
}

// SetFeed registers the single feed asset.
func (i *ImageSet) SetFeed(a *Asset) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Feed = a
}

// MarkAllStale marks every currently produced variant stale.
func (i *ImageSet) MarkAllStale(at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.CoverAssets {
		i.CoverAssets[idx].Asset.MarkStale(at)
	}
	for idx := range i.ArtistAssets {
		i.ArtistAssets[idx].Asset.MarkStale(at)
	}
	if i.Background != nil {
		i.Background.MarkStale(at)
	}
	if i.Feed != nil {
		i.Feed.MarkStale(at)
	}
}

func (i *ImageSet) toGob() imageSetGob {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return imageSetGob{
		Fingerprint:  i.Fingerprint,
		CoverAssets:  append([]CoverVariant(nil), i.CoverAssets...),
		ArtistAssets: append([]ArtistVariant(nil), i.ArtistAssets...),
		Background:   i.Background,
		Feed:         i.Feed,
	}
}

func imageSetFromGob(g imageSetGob) *ImageSet {
	return &ImageSet{
		Fingerprint:  g.Fingerprint,
		CoverAssets:  g.CoverAssets,
		ArtistAssets: g.ArtistAssets,
		Background:   g.Background,
		Feed:         g.Feed,
	}
}

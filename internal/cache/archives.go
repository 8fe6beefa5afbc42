package cache

import (
	"sync"
	"time"

	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/format"
)

// ArchiveSet is the cache record for one release's download archives. Its
// identity is the tuple (cover fingerprint, ordered track fingerprints,
// extras fingerprints) — not any higher-level release name.
type ArchiveSet struct {
	mu sync.RWMutex

	CoverFingerprint  *fingerprint.Fingerprint
	TrackFingerprints []fingerprint.Fingerprint
	ExtraFingerprints []fingerprint.Fingerprint

	assets map[format.Download]*Asset
}

type archiveSetGob struct {
	CoverFingerprint  *fingerprint.Fingerprint
	TrackFingerprints []fingerprint.Fingerprint
	ExtraFingerprints []fingerprint.Fingerprint
	Assets            map[format.Download]*Asset
}

func newArchiveSet(cover *fingerprint.Fingerprint, tracks, extras []fingerprint.Fingerprint) *ArchiveSet {
	return &ArchiveSet{
		CoverFingerprint:  cover,
		TrackFingerprints: tracks,
		ExtraFingerprints: extras,
		assets:            map[format.Download]*Asset{},
	}
}

// Matches reports whether this ArchiveSet's identity tuple is equivalent to
// the given one: cover fingerprint equal, extras equal as a set, tracks
// equal as an ordered sequence.
func (a *ArchiveSet) Matches(cover *fingerprint.Fingerprint, tracks, extras []fingerprint.Fingerprint) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if (a.CoverFingerprint == nil) != (cover == nil) {
		return false
	}
	if a.CoverFingerprint != nil && !a.CoverFingerprint.Equal(*cover) {
		return false
	}

	if len(a.TrackFingerprints) != len(tracks) {
		return false
	}
	for i := range tracks {
		if !a.TrackFingerprints[i].Equal(tracks[i]) {
			return false
		}
	}

	if len(a.ExtraFingerprints) != len(extras) {
		return false
	}
	for _, e := range extras {
		found := false
		for _, have := range a.ExtraFingerprints {
			if have.Equal(e) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Get returns the asset for a download format, or nil.
func (a *ArchiveSet) Get(f format.Download) *Asset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.assets[f]
}

// Set registers a produced archive asset for a format.
func (a *ArchiveSet) Set(f format.Download, asset *Asset) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assets[f] = asset
}

// Take removes and returns the asset for a format, if any.
func (a *ArchiveSet) Take(f format.Download) *Asset {
	a.mu.Lock()
	defer a.mu.Unlock()
	asset := a.assets[f]
	delete(a.assets, f)
	return asset
}

// Empty reports whether no archive has ever been produced for this tuple.
func (a *ArchiveSet) Empty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.assets) == 0
}

// MarkAllStale marks every currently produced archive stale.
func (a *ArchiveSet) MarkAllStale(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, asset := range a.assets {
		asset.MarkStale(at)
	}
}

func (a *ArchiveSet) toGob() archiveSetGob {
	a.mu.RLock()
	defer a.mu.RUnlock()
	assets := make(map[format.Download]*Asset, len(a.assets))
	for k, v := range a.assets {
		assets[k] = v
	}
	return archiveSetGob{
		CoverFingerprint:  a.CoverFingerprint,
		TrackFingerprints: append([]fingerprint.Fingerprint(nil), a.TrackFingerprints...),
		ExtraFingerprints: append([]fingerprint.Fingerprint(nil), a.ExtraFingerprints...),
		Assets:            assets,
	}
}

func archiveSetFromGob(g archiveSetGob) *ArchiveSet {
	assets := g.Assets
	if assets == nil {
		assets = map[format.Download]*Asset{}
	}
	return &ArchiveSet{
		CoverFingerprint:  g.CoverFingerprint,
		TrackFingerprints: g.TrackFingerprints,
		ExtraFingerprints: g.ExtraFingerprints,
		assets:            assets,
	}
}

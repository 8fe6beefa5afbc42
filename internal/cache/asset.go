// Package cache implements the cache engine: it maps source fingerprints to
// sets of produced assets, detects staleness, and garbage-collects the
// asset store between builds.
package cache

import "time"

// Asset is one produced file in the cache directory.
type Asset struct {
	Filename      string
	FilesizeBytes int64
	// MarkedStale holds the timestamp at which this asset was marked
	// stale; nil means the asset is in use.
	MarkedStale *time.Time
}

// MarkStale sets the stale timestamp if not already set.
func (a *Asset) MarkStale(at time.Time) {
	if a.MarkedStale == nil {
		t := at
		a.MarkedStale = &t
	}
}

// Unstale clears the stale mark, used when a build reuses an existing
// asset.
func (a *Asset) Unstale() {
	a.MarkedStale = nil
}

// Obsolete reports whether the asset has been stale for at least
// threshold, making it a candidate for removal by Optimize (the "immediate"
// policy, or an optimize-only run after "delayed" reported it).
func (a *Asset) Obsolete(now time.Time, threshold time.Duration) bool {
	if a.MarkedStale == nil {
		return false
	}
	return now.Sub(*a.MarkedStale) >= threshold
}

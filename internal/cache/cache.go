package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/go-git/go-billy/v5"

	"github.com/faircamp-go/faircamp/internal/arena"
	"github.com/faircamp-go/faircamp/internal/assetstore"
	"github.com/faircamp-go/faircamp/internal/audiometa"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/fingerprint/hash"
	"github.com/faircamp-go/faircamp/internal/format"
	"github.com/faircamp-go/faircamp/internal/fsx"
)

// Optimization selects the cache-optimization policy.
type Optimization int

const (
	OptimizationDefault Optimization = iota
	OptimizationDelayed
	OptimizationImmediate
	OptimizationManual
	OptimizationWipe
)

// ParseOptimization maps a manifest/CLI key to an Optimization.
func ParseOptimization(key string) (Optimization, bool) {
	switch key {
	case "delayed":
		return OptimizationDelayed, true
	case "immediate":
		return OptimizationImmediate, true
	case "manual":
		return OptimizationManual, true
	case "wipe":
		return OptimizationWipe, true
	default:
		return OptimizationDefault, false
	}
}

func (o Optimization) String() string {
	switch o {
	case OptimizationDelayed:
		return "delayed"
	case OptimizationImmediate:
		return "immediate"
	case OptimizationManual:
		return "manual"
	case OptimizationWipe:
		return "wipe"
	default:
		return "default"
	}
}

// staleThreshold is how long an asset must have been marked stale before
// Optimize removes it (under the "immediate" policy or an optimize-only run). Zero means "remove as soon
// as marked," which is what a single-build-per-invocation tool needs —
// there is no notion of "stale for a few days" across invocations of a
// batch generator.
const staleThreshold = 0

// Cache is the top-level registry: three lists (TranscodeSets, ImageSets,
// ArchiveSets), retrieved once per build and mutated throughout. Handles
// into the three arenas are stable for the lifetime of the Cache and are
// what catalog entities (Track, Release, Image) hold.
type Cache struct {
	store *assetstore.Store
	log   *diag.Logger

	Transcodes arena.Arena[*TranscodeSet]
	Images     arena.Arena[*ImageSet]
	Archives   arena.Arena[*ArchiveSet]

	// Indexes are ordered, insertion-preserving lookup maps from a derived
	// string key to an arena Handle, avoiding an O(n) predicate scan on
	// every get_or_create call once a catalog has thousands of tracks.
	transcodeIndex *linkedhashmap.Map
	imageIndex     *linkedhashmap.Map
}

// Retrieve opens the cache directory, enumerates it, routes manifests to
// the matching deserializer, prunes dead references, and removes orphaned
// assets.
func Retrieve(fs billy.Filesystem, dir string, log *diag.Logger) (*Cache, error) {
	store, wiped, err := assetstore.Open(fs, dir)
	if err != nil {
		return nil, err
	}
	if wiped {
		log.Info("Existing cache data is in an incompatible format, the cache will be purged and regenerated.")
	}

	c := &Cache{
		store:          store,
		log:            log,
		transcodeIndex: linkedhashmap.New(),
		imageIndex:     linkedhashmap.New(),
	}

	listing, err := store.List()
	if err != nil {
		return nil, err
	}

	for _, name := range listing.IncompatibleDirs {
		log.Info("Removing incompatible cache directory %s - it was probably created with a different version of faircamp.", name)
		if err := store.RemoveIncompatibleDir(name); err != nil {
			return nil, err
		}
	}

	for _, m := range listing.Manifests {
		switch m.Kind {
		case assetstore.KindArchives:
			c.retrieveArchives(m.Name, listing.Assets)
		case assetstore.KindImages:
			c.retrieveImages(m.Name, listing.Assets)
		case assetstore.KindTranscodes:
			c.retrieveTranscodes(m.Name, listing.Assets)
		default:
			log.Info("Removing incompatible cache manifest %s - it was probably created with a different version of faircamp.", m.Name)
			_ = store.Remove(m.Name)
		}
	}

	for filename, used := range listing.Assets {
		if !used {
			log.Info("Removing orphaned cache asset (%s).", filename)
			_ = store.Remove(filename)
		}
	}

	return c, nil
}

func (c *Cache) retrieveArchives(name string, assets map[string]bool) {
	raw, err := c.store.ReadManifest(name)
	if err != nil {
		c.demote(name, "archives")
		return
	}

	var g archiveSetGob
	if err := gobDecode(raw, &g); err != nil {
		c.demote(name, "archives")
		return
	}
	archives := archiveSetFromGob(g)

	dirty := false
	present := false
	for _, f := range format.AllDownload {
		a := archives.Get(f)
		if a == nil {
			continue
		}
		if _, ok := assets[a.Filename]; ok {
			assets[a.Filename] = true
			present = true
		} else {
			archives.Take(f)
			dirty = true
		}
	}

	if !present {
		_ = c.store.Remove(name)
		return
	}
	if dirty {
		c.persistArchives(archives)
	}
	c.Archives.New(archives)
}

func (c *Cache) retrieveImages(name string, assets map[string]bool) {
	raw, err := c.store.ReadManifest(name)
	if err != nil {
		c.demote(name, "images")
		return
	}

	var g imageSetGob
	if err := gobDecode(raw, &g); err != nil {
		c.demote(name, "images")
		return
	}
	img := imageSetFromGob(g)

	dirty := false

	if len(img.ArtistAssets) > 0 {
		if allPresent(img.ArtistAssets, assets, func(v ArtistVariant) string { return v.Asset.Filename }) {
			markUsed(img.ArtistAssets, assets, func(v ArtistVariant) string { return v.Asset.Filename })
		} else {
			img.ArtistAssets = nil
			dirty = true
		}
	}

	if len(img.CoverAssets) > 0 {
		if allPresent(img.CoverAssets, assets, func(v CoverVariant) string { return v.Asset.Filename }) {
			markUsed(img.CoverAssets, assets, func(v CoverVariant) string { return v.Asset.Filename })
		} else {
			img.CoverAssets = nil
			dirty = true
		}
	}

	if img.Background != nil {
		if _, ok := assets[img.Background.Filename]; ok {
			assets[img.Background.Filename] = true
		} else {
			img.Background = nil
			dirty = true
		}
	}

	if img.Feed != nil {
		if _, ok := assets[img.Feed.Filename]; ok {
			assets[img.Feed.Filename] = true
		} else {
			img.Feed = nil
			dirty = true
		}
	}

	if img.Empty() {
		_ = c.store.Remove(name)
		return
	}
	if dirty {
		c.persistImage(img)
	}
	h := c.Images.New(img)
	c.imageIndex.Put(img.Fingerprint.Path, h)
}

func (c *Cache) retrieveTranscodes(name string, assets map[string]bool) {
	raw, err := c.store.ReadManifest(name)
	if err != nil {
		c.demote(name, "transcodes")
		return
	}

	var g transcodeSetGob
	if err := gobDecode(raw, &g); err != nil {
		c.demote(name, "transcodes")
		return
	}
	ts := transcodeSetFromGob(g)

	dirty := false
	for _, f := range format.AllAudio {
		a := ts.Get(f)
		if a == nil {
			continue
		}
		if _, ok := assets[a.Filename]; ok {
			assets[a.Filename] = true
		} else {
			ts.Take(f)
			dirty = true
		}
	}

	// Unlike Archives/Images, a TranscodeSet is always kept even with zero
	// formats produced: it retains the expensively-computed AudioMeta.
	if dirty {
		c.persistTranscodes(ts)
	}
	h := c.Transcodes.New(ts)
	c.transcodeIndex.Put(ts.Fingerprint.Path, h)
}

func (c *Cache) demote(name, kind string) {
	c.log.Info("Removing incompatible %s cache manifest (%s) - it was probably created with a different version of faircamp.", kind, name)
	_ = c.store.Remove(name)
}

func allPresent[T any](items []T, assets map[string]bool, key func(T) string) bool {
	for _, item := range items {
		if _, ok := assets[key(item)]; !ok {
			return false
		}
	}
	return true
}

func markUsed[T any](items []T, assets map[string]bool, key func(T) string) {
	for _, item := range items {
		assets[key(item)] = true
	}
}

// GetOrCreateTranscodes finds the TranscodeSet for fp or creates one,
// extracting AudioMeta on creation and persisting immediately since
// extraction is expensive.
func (c *Cache) GetOrCreateTranscodes(fp fingerprint.Fingerprint, sourcePath, extension string) (arena.Handle, *TranscodeSet, error) {
	if h, ok := c.transcodeIndex.Get(fp.Path); ok {
		handle := h.(arena.Handle)
		if ts := c.Transcodes.Get(handle); ts.Fingerprint.Equal(fp) {
			return handle, ts, nil
		}
	}

	meta, err := audiometa.Extract(sourcePath, extension)
	if err != nil {
		return 0, nil, fmt.Errorf("cache: extracting audio metadata for %s: %w", fp.Path, err)
	}

	ts := newTranscodeSet(fp, meta)
	c.persistTranscodes(ts)

	h := c.Transcodes.New(ts)
	c.transcodeIndex.Put(fp.Path, h)
	return h, ts, nil
}

// GetOrCreateImage finds the ImageSet for fp or creates an empty one. Unlike
// transcodes, an ImageSet is not persisted until a variant is produced.
func (c *Cache) GetOrCreateImage(fp fingerprint.Fingerprint) (arena.Handle, *ImageSet) {
	if h, ok := c.imageIndex.Get(fp.Path); ok {
		handle := h.(arena.Handle)
		if img := c.Images.Get(handle); img.Fingerprint.Equal(fp) {
			return handle, img
		}
	}

	img := newImageSet(fp)
	h := c.Images.New(img)
	c.imageIndex.Put(fp.Path, h)
	return h, img
}

// GetOrCreateArchives finds the ArchiveSet matching the given identity
// tuple or creates an empty one. It does not
// persist until a format asset exists.
func (c *Cache) GetOrCreateArchives(cover *fingerprint.Fingerprint, tracks, extras []fingerprint.Fingerprint) (arena.Handle, *ArchiveSet) {
	if h, ok := c.Archives.Find(func(a *ArchiveSet) bool { return a.Matches(cover, tracks, extras) }); ok {
		return h, c.Archives.Get(h)
	}

	as := newArchiveSet(cover, tracks, extras)
	h := c.Archives.New(as)
	return h, as
}

// PersistTranscodes re-persists a TranscodeSet's manifest, e.g.
// after a new format asset has been produced.
func (c *Cache) PersistTranscodes(ts *TranscodeSet) { c.persistTranscodes(ts) }

// PersistImage re-persists an ImageSet's manifest.
func (c *Cache) PersistImage(img *ImageSet) { c.persistImage(img) }

// PersistArchives persists an ArchiveSet's manifest, called the first time
// at least one format asset exists for it.
func (c *Cache) PersistArchives(as *ArchiveSet) { c.persistArchives(as) }

func (c *Cache) persistTranscodes(ts *TranscodeSet) {
	data, err := gobEncode(ts.toGob())
	if err != nil {
		c.log.Warning("failed to encode transcodes manifest for %s: %v", ts.Fingerprint.Path, err)
		return
	}
	name := assetstore.ManifestName(assetstore.KindTranscodes, hash.SumStrings(ts.Fingerprint.Path))
	if err := c.store.WriteManifest(name, data); err != nil {
		c.log.Warning("failed to persist transcodes manifest for %s: %v", ts.Fingerprint.Path, err)
	}
}

func (c *Cache) persistImage(img *ImageSet) {
	data, err := gobEncode(img.toGob())
	if err != nil {
		c.log.Warning("failed to encode image manifest for %s: %v", img.Fingerprint.Path, err)
		return
	}
	name := assetstore.ManifestName(assetstore.KindImages, hash.SumStrings(img.Fingerprint.Path))
	if err := c.store.WriteManifest(name, data); err != nil {
		c.log.Warning("failed to persist image manifest for %s: %v", img.Fingerprint.Path, err)
	}
}

func (c *Cache) persistArchives(as *ArchiveSet) {
	g := as.toGob()
	data, err := gobEncode(g)
	if err != nil {
		c.log.Warning("failed to encode archives manifest: %v", err)
		return
	}
	name := assetstore.ManifestName(assetstore.KindArchives, archiveIdentityHash(g))
	if err := c.store.WriteManifest(name, data); err != nil {
		c.log.Warning("failed to persist archives manifest: %v", err)
	}
}

// archiveIdentityHash derives a manifest filename key from an ArchiveSet's
// identity tuple: the cover fingerprint, the ordered
// track fingerprint sequence, and the extras fingerprint set sorted for a
// stable hash input regardless of discovery order.
func archiveIdentityHash(g archiveSetGob) string {
	parts := make([]string, 0, 2+len(g.TrackFingerprints)+len(g.ExtraFingerprints))
	if g.CoverFingerprint != nil {
		parts = append(parts, "cover:"+g.CoverFingerprint.Path)
	}
	for _, fp := range g.TrackFingerprints {
		parts = append(parts, "track:"+fp.Path)
	}
	extras := make([]string, 0, len(g.ExtraFingerprints))
	for _, fp := range g.ExtraFingerprints {
		extras = append(extras, "extra:"+fp.Path)
	}
	sort.Strings(extras)
	parts = append(parts, extras...)
	return hash.SumStrings(parts...)
}

// Store exposes the underlying asset store for produce steps that need to
// write new asset files.
func (c *Cache) Store() *assetstore.Store { return c.store }

// MarkAllStale marks every currently produced asset in the cache stale.
// Build.Run does not call it, and no build step clears a mark when it
// reuses an asset, so assets are stale only where a caller of this method
// (or of the per-set MarkAllStale methods) marked them.
func (c *Cache) MarkAllStale(at time.Time) {
	for _, h := range c.Transcodes.All() {
		c.Transcodes.Get(h).MarkAllStale(at)
	}
	for _, h := range c.Images.All() {
		c.Images.Get(h).MarkAllStale(at)
	}
	for _, h := range c.Archives.All() {
		c.Archives.Get(h).MarkAllStale(at)
	}
}

// Stats summarizes obsolete (still-stale) assets, used both for reporting
// obsolete asset counts without removal (ReportStale, the "delayed" policy)
// and for the actual removal pass (Optimize, the "immediate" policy and
// optimize-only runs).
type Stats struct {
	Count int
	Bytes int64
}

// ReportStale reports, without removing, how many assets are still marked
// stale.
func (c *Cache) ReportStale() Stats {
	var s Stats
	now := time.Now()
	for _, h := range c.Transcodes.All() {
		for _, f := range format.AllAudio {
			if a := c.Transcodes.Get(h).Get(f); a != nil && a.Obsolete(now, staleThreshold) {
				s.Count++
				s.Bytes += a.FilesizeBytes
			}
		}
	}
	for _, h := range c.Images.All() {
		img := c.Images.Get(h)
		for _, v := range img.CoverAssets {
			if v.Asset.Obsolete(now, staleThreshold) {
				s.Count++
				s.Bytes += v.Asset.FilesizeBytes
			}
		}
		for _, v := range img.ArtistAssets {
			if v.Asset.Obsolete(now, staleThreshold) {
				s.Count++
				s.Bytes += v.Asset.FilesizeBytes
			}
		}
		if img.Background != nil && img.Background.Obsolete(now, staleThreshold) {
			s.Count++
			s.Bytes += img.Background.FilesizeBytes
		}
		if img.Feed != nil && img.Feed.Obsolete(now, staleThreshold) {
			s.Count++
			s.Bytes += img.Feed.FilesizeBytes
		}
	}
	for _, h := range c.Archives.All() {
		as := c.Archives.Get(h)
		for _, f := range format.AllDownload {
			if a := as.Get(f); a != nil && a.Obsolete(now, staleThreshold) {
				s.Count++
				s.Bytes += a.FilesizeBytes
			}
		}
	}
	return s
}

// Optimize removes every obsolete (stale) asset and rewrites or deletes the
// manifests they belonged to.
func (c *Cache) Optimize() Stats {
	var s Stats
	now := time.Now()

	for _, h := range c.Archives.All() {
		as := c.Archives.Get(h)
		keep := false
		for _, f := range format.AllDownload {
			a := as.Get(f)
			if a == nil {
				continue
			}
			if a.Obsolete(now, staleThreshold) {
				as.Take(f)
				_ = c.store.Remove(a.Filename)
				s.Count++
				s.Bytes += a.FilesizeBytes
			} else {
				keep = true
			}
		}
		if keep {
			c.persistArchives(as)
		} else {
			_ = c.store.Remove(assetstore.ManifestName(assetstore.KindArchives, archiveIdentityHash(as.toGob())))
		}
	}

	for _, h := range c.Images.All() {
		img := c.Images.Get(h)
		keep := optimizeImage(img, now, &s, c.store)
		if keep {
			c.persistImage(img)
		}
	}

	for _, h := range c.Transcodes.All() {
		ts := c.Transcodes.Get(h)
		for _, f := range format.AllAudio {
			a := ts.Get(f)
			if a == nil {
				continue
			}
			if a.Obsolete(now, staleThreshold) {
				ts.Take(f)
				_ = c.store.Remove(a.Filename)
				s.Count++
				s.Bytes += a.FilesizeBytes
			}
		}
		c.persistTranscodes(ts)
	}

	return s
}

func optimizeImage(img *ImageSet, now time.Time, s *Stats, store *assetstore.Store) bool {
	keep := false

	remainingCovers := img.CoverAssets[:0:0]
	for _, v := range img.CoverAssets {
		if v.Asset.Obsolete(now, staleThreshold) {
			_ = store.Remove(v.Asset.Filename)
			s.Count++
			s.Bytes += v.Asset.FilesizeBytes
			continue
		}
		keep = true
		remainingCovers = append(remainingCovers, v)
	}
	img.CoverAssets = remainingCovers

	remainingArtist := img.ArtistAssets[:0:0]
	for _, v := range img.ArtistAssets {
		if v.Asset.Obsolete(now, staleThreshold) {
			_ = store.Remove(v.Asset.Filename)
			s.Count++
			s.Bytes += v.Asset.FilesizeBytes
			continue
		}
		keep = true
		remainingArtist = append(remainingArtist, v)
	}
	img.ArtistAssets = remainingArtist

	if img.Background != nil {
		if img.Background.Obsolete(now, staleThreshold) {
			_ = store.Remove(img.Background.Filename)
			s.Count++
			s.Bytes += img.Background.FilesizeBytes
			img.Background = nil
		} else {
			keep = true
		}
	}

	if img.Feed != nil {
		if img.Feed.Obsolete(now, staleThreshold) {
			_ = store.Remove(img.Feed.Filename)
			s.Count++
			s.Bytes += img.Feed.FilesizeBytes
			img.Feed = nil
		} else {
			keep = true
		}
	}

	return keep
}

// Wipe clears every file in the cache directory and resets the in-memory
// registry, for the "wipe" optimization policy.
func (c *Cache) Wipe(fs billy.Filesystem, dir string) error {
	if err := fsx.EnsureEmptyDir(fs, dir); err != nil {
		return err
	}
	store, _, err := assetstore.Open(fs, dir)
	if err != nil {
		return err
	}
	c.store = store
	c.Transcodes = arena.Arena[*TranscodeSet]{}
	c.Images = arena.Arena[*ImageSet]{}
	c.Archives = arena.Arena[*ArchiveSet]{}
	c.transcodeIndex = linkedhashmap.New()
	c.imageIndex = linkedhashmap.New()
	return nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Package archive builds downloadable zip archives for a release: one zip
// per requested download format, containing the release's tracks
// transcoded to that format plus an optional cover image. Identity and
// caching are delegated to internal/cache.ArchiveSet; this package only
// decides what goes into a zip and writes it.
package archive

import (
	"archive/zip"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/catalog"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/fingerprint/hash"
	"github.com/faircamp-go/faircamp/internal/format"
	"github.com/faircamp-go/faircamp/internal/manifest"
)

// TrackTranscoder is the external collaborator that turns a track's source
// audio into a download-format file, writing it into the cache and
// registering the result on the TranscodeSet. Satisfied by
// internal/transcode.
type TrackTranscoder interface {
	TranscodeForDownload(ts *cache.TranscodeSet, f format.Download) (*cache.Asset, error)
}

// CoverProcessor is the external collaborator that renders a release's
// cover ImageSet to a plain JPEG suitable for bundling in a zip. Satisfied
// by internal/imageproc.
type CoverProcessor interface {
	CoverJPEG(img *cache.ImageSet) (*cache.Asset, error)
}

// Builder is the Archive Builder component: given a resolved Release, it
// fills in every download format the release's Overrides request that
// isn't already present in its ArchiveSet.
type Builder struct {
	fs       billy.Filesystem
	cacheDir string
	cache    *cache.Cache
	tracks   TrackTranscoder
	covers   CoverProcessor
	log      *diag.Logger
}

// NewBuilder returns a Builder writing zips under cacheDir on fs, using c
// for cache lookups/persistence and tracks/covers to materialize the
// underlying per-format assets on demand.
func NewBuilder(fs billy.Filesystem, cacheDir string, c *cache.Cache, tracks TrackTranscoder, covers CoverProcessor, log *diag.Logger) *Builder {
	return &Builder{fs: fs, cacheDir: cacheDir, cache: c, tracks: tracks, covers: covers, log: log}
}

// Build ensures every download format release.Overrides.DownloadFormats
// requests exists in the release's ArchiveSet, creating missing zips. It
// sets release.Archives/HasArchives to the resolved handle. cat resolves
// the release's tracks' ArtistRefs to names for zip entry filenames.
func (b *Builder) Build(cat *catalog.Catalog, release *catalog.Release, coverSet *cache.ImageSet) error {
	if release.DownloadOpt == manifest.DownloadOptionDisabled {
		return nil
	}

	trackSets := make([]*cache.TranscodeSet, len(release.Tracks))
	trackFPs := make([]fingerprint.Fingerprint, len(release.Tracks))
	for i, t := range release.Tracks {
		ts := b.cache.Transcodes.Get(t.Transcodes)
		trackSets[i] = ts
		trackFPs[i] = ts.Fingerprint
	}

	var coverFP *fingerprint.Fingerprint
	if release.HasCover && coverSet != nil {
		fp := coverSet.Fingerprint
		coverFP = &fp
	}

	handle, archives := b.cache.GetOrCreateArchives(coverFP, trackFPs, nil)
	release.Archives = handle
	release.HasArchives = true

	dirty := false
	for _, f := range release.Overrides.DownloadFormats {
		if archives.Get(f) != nil {
			continue
		}

		b.warnIfDiscouraged(release, trackSets, f)

		asset, err := b.buildZip(cat, release, trackSets, coverSet, f)
		if err != nil {
			return fmt.Errorf("archive: building %s archive for %s: %w", f, release.SourceDir, err)
		}

		archives.Set(f, asset)
		dirty = true
	}

	if dirty {
		b.cache.PersistArchives(archives)
	}

	return nil
}

func (b *Builder) warnIfDiscouraged(release *catalog.Release, tracks []*cache.TranscodeSet, f format.Download) {
	if !f.Lossless() {
		return
	}
	for i, ts := range tracks {
		if !ts.Meta.Lossless {
			b.log.Warning("release %s: track %d comes from a lossy source, offering it in lossless format %s is wasteful and misleading", release.SourceDir, i+1, f)
		}
	}
}

func (b *Builder) buildZip(cat *catalog.Catalog, release *catalog.Release, tracks []*cache.TranscodeSet, coverSet *cache.ImageSet, f format.Download) (*cache.Asset, error) {
	filename := zipFilename(release, f)
	fullPath := b.cacheDir + "/" + filename

	out, err := b.fs.Create(fullPath)
	if err != nil {
		return nil, err
	}

	w := zip.NewWriter(out)

	for i, track := range release.Tracks {
		asset, err := b.tracks.TranscodeForDownload(tracks[i], f)
		if err != nil {
			w.Close()
			out.Close()
			return nil, err
		}

		entryName := entryFilename(cat, i, track, f)
		if err := copyIntoZip(w, b.fs, b.cacheDir+"/"+asset.Filename, entryName); err != nil {
			w.Close()
			out.Close()
			return nil, err
		}
	}

	if release.HasCover && coverSet != nil {
		coverAsset, err := b.covers.CoverJPEG(coverSet)
		if err == nil && coverAsset != nil {
			if err := copyIntoZip(w, b.fs, b.cacheDir+"/"+coverAsset.Filename, "cover.jpg"); err != nil {
				w.Close()
				out.Close()
				return nil, err
			}
		}
	}

	if err := w.Close(); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	size, err := fileSize(b.fs, fullPath)
	if err != nil {
		return nil, err
	}

	return &cache.Asset{Filename: filename, FilesizeBytes: size}, nil
}

func copyIntoZip(w *zip.Writer, fs billy.Filesystem, srcPath, entryName string) error {
	src, err := fs.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := w.CreateHeader(&zip.FileHeader{Name: entryName, Method: zip.Deflate})
	if err != nil {
		return err
	}

	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := entry.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr != nil {
			break
		}
	}
	return nil
}

func fileSize(fs billy.Filesystem, path string) (int64, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// zipFilename derives an archive filename by hashing the release permalink
// and format. The name does not depend on the archive's contents, so every
// build of a release with the same permalink uses the same cache entry name.
func zipFilename(release *catalog.Release, f format.Download) string {
	return hash.SumStrings(release.Permalink.Slug, string(f)) + ".zip"
}

// entryFilename builds the "NN Artists - Title.ext" zip entry name, a
// stable numbering scheme independent of whatever filesystem order the
// tracks were discovered in.
func entryFilename(cat *catalog.Catalog, index int, track catalog.Track, f format.Download) string {
	names := make([]string, len(track.Artists))
	for i, ref := range track.Artists {
		names[i] = cat.Artists[ref].Name
	}

	separator := ""
	if len(names) > 0 {
		separator = " - "
	}

	return fmt.Sprintf("%02d %s%s%s.%s", index+1, strings.Join(names, ", "), separator, sanitizeEntryComponent(track.Title), f.Extension())
}

func sanitizeEntryComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '-'
		default:
			return r
		}
	}, s)
}

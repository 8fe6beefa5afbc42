// Package build is the build pipeline orchestrator: it runs a catalog
// through Plan, Produce, Emit and Finalize in order. It wires together
// every other package (catalog, cache, transcode, imageproc, archive,
// urlplan, fsx) the way distribution's cmd/registry/main.go wires a storage
// driver, an auth backend and the HTTP handlers into one handlers.NewApp
// call.
package build

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/faircamp-go/faircamp/internal/archive"
	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/catalog"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/format"
	"github.com/faircamp-go/faircamp/internal/imageproc"
	"github.com/faircamp-go/faircamp/internal/manifest"
	"github.com/faircamp-go/faircamp/internal/transcode"
	"github.com/faircamp-go/faircamp/internal/urlplan"
)

// Options configures one build run, gathered from CLI flags and/or
// resolved Globals.
type Options struct {
	CatalogRoot       string
	CacheDir          string
	OutputDir         string
	OptimizeOnly      bool
	NoSignature       bool
	Theme             string
	Verbose           bool
	CacheOptimization cache.Optimization // zero value means "use the catalog's own Globals setting"
	Concurrency       int                // 0 means "pick a sensible default"
}

// Build drives one full run of the pipeline over a catalog rooted at
// Options.CatalogRoot.
type Build struct {
	opt Options

	catalogFS billy.Filesystem
	cacheFS   billy.Filesystem
	outputFS  billy.Filesystem

	cache *cache.Cache
	log   *diag.Logger
	trans *transcode.Transcoder
	img   *imageproc.Processor
	arch  *archive.Builder

	transcodeGroup singleflight.Group
}

// New opens the cache directory and wires every collaborator for a build
// against catalogFS/cacheFS/outputFS, all rooted at "." on their
// respective billy.Filesystem (the CLI hands in OS-backed filesystems
// rooted at the resolved catalog/cache/output directories).
func New(catalogFS, cacheFS, outputFS billy.Filesystem, opt Options) (*Build, error) {
	log := &diag.Logger{Verbose: opt.Verbose}

	c, err := cache.Retrieve(cacheFS, ".", log)
	if err != nil {
		return nil, fmt.Errorf("build: opening cache: %w", err)
	}

	ffmpegBinary := "ffmpeg"
	trans := transcode.NewTranscoder(catalogFS, ".", cacheFS, ".", c, log, ffmpegBinary)
	img := imageproc.NewProcessor(catalogFS, ".", cacheFS, ".")
	arch := archive.NewBuilder(cacheFS, ".", c, trans, img, log)

	return &Build{
		opt:       opt,
		catalogFS: catalogFS,
		cacheFS:   cacheFS,
		outputFS:  outputFS,
		cache:     c,
		log:       log,
		trans:     trans,
		img:       img,
		arch:      arch,
	}, nil
}

// Run executes Plan, Produce, Emit, Finalize in order and returns the
// first error encountered. A produce failure aborts the whole build; there
// is no partial output.
func (b *Build) Run(ctx context.Context) error {
	if b.opt.OptimizeOnly {
		stats := b.cache.Optimize()
		b.log.Info("cache optimization: removed %d assets, %d bytes reclaimed", stats.Count, stats.Bytes)
		return nil
	}

	cat, report, err := b.plan()
	if err != nil {
		return fmt.Errorf("build: plan: %w", err)
	}
	if report.Fatal() {
		report.Print()
		return fmt.Errorf("build: aborting before emit, resolution reported fatal errors")
	}
	for _, p := range report.Problems() {
		b.log.Info("%s", p.String())
	}

	if err := b.produce(ctx, cat); err != nil {
		return fmt.Errorf("build: produce: %w", err)
	}

	planner, err := b.urlPlanner(cat)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if err := b.emit(cat, planner); err != nil {
		return fmt.Errorf("build: emit: %w", err)
	}

	b.finalize(cat)
	return nil
}

// plan walks the catalog, resolving every entity, permalink and manifest
// option. It produces no assets, but a track seen for the first time gets
// its AudioMeta extracted and its transcodes manifest written to the cache.
// It is the first of the four Emit Pipeline phases.
func (b *Build) plan() (*catalog.Catalog, *diag.Report, error) {
	report := diag.NewReport()
	builder := catalog.NewBuilder(b.catalogFS, b.opt.CatalogRoot, b.cache, report, b.log)
	cat, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	return cat, report, nil
}

// produce invokes the transcoder, image processor and archive builder for
// every asset the plan needs but the cache doesn't already have, bounded
// by a worker pool sized per Options.Concurrency. Cache-registry mutation
// is serialized inside internal/cache itself; only the blocking produce
// calls run off the calling goroutine.
func (b *Build) produce(ctx context.Context, cat *catalog.Catalog) error {
	limit := b.opt.Concurrency
	if limit <= 0 {
		limit = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range cat.Releases {
		release := &cat.Releases[i]
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return b.produceRelease(cat, release)
		})
	}

	return g.Wait()
}

func (b *Build) produceRelease(cat *catalog.Catalog, release *catalog.Release) error {
	for i := range release.Tracks {
		track := &release.Tracks[i]
		ts := b.cache.Transcodes.Get(track.Transcodes)

		if err := b.transcodeOnce(ts, release.Overrides.StreamingQuality); err != nil {
			return fmt.Errorf("track %s: %w", track.SourcePath, err)
		}
	}

	var coverSet *cache.ImageSet
	if release.HasCover {
		coverSet = b.cache.Images.Get(release.Cover)
		if err := b.produceCoverVariants(coverSet); err != nil {
			return fmt.Errorf("release %s: cover: %w", release.SourceDir, err)
		}
	}

	if release.DownloadOpt != manifest.DownloadOptionDisabled {
		if err := b.arch.Build(cat, release, coverSet); err != nil {
			return err
		}
	}

	return nil
}

// transcodeOnce deduplicates concurrent transcode requests for the same
// fingerprint via singleflight, so two workers racing on the same track
// never both dispatch a transcode.
func (b *Build) transcodeOnce(ts *cache.TranscodeSet, primary format.Audio) error {
	key := ts.Fingerprint.Path + "|" + string(primary)
	_, err, _ := b.transcodeGroup.Do(key, func() (any, error) {
		return b.trans.TranscodeStreaming(ts, primary)
	})
	return err
}

func (b *Build) produceCoverVariants(img *cache.ImageSet) error {
	variants := make([]cache.CoverVariant, 0, len(imageproc.CoverVariantSizes))
	for _, edge := range imageproc.CoverVariantSizes {
		asset, _, _, err := b.img.Resize(img.Fingerprint.Path, imageproc.Spec{Mode: imageproc.CoverSquare, EdgeSize: edge})
		if err != nil {
			return err
		}
		variants = append(variants, cache.CoverVariant{EdgeSize: edge, Asset: *asset})
	}
	img.SetCover(variants)
	b.cache.PersistImage(img)
	return nil
}

// urlPlanner resolves the URL salt policy from the catalog's Globals.
func (b *Build) urlPlanner(cat *catalog.Catalog) (*urlplan.Planner, error) {
	policy := urlplan.Freeze
	if cat.Globals.RotateURLs {
		policy = urlplan.Rotate
	}
	p, err := urlplan.NewPlanner(policy, cat.Globals.URLSalt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// finalize runs cache optimization per the resolved policy and reports
// stats, the fourth Emit Pipeline phase.
func (b *Build) finalize(cat *catalog.Catalog) {
	policy := b.opt.CacheOptimization
	if policy == cache.OptimizationDefault {
		policy = cat.Globals.CacheOptimization
	}

	switch policy {
	case cache.OptimizationWipe:
		if err := b.cache.Wipe(b.cacheFS, "."); err != nil {
			b.log.Warning("cache wipe failed: %v", err)
		}
	case cache.OptimizationManual:
		// no automatic reclamation
	case cache.OptimizationDelayed:
		stats := b.cache.ReportStale()
		b.log.InfoCache("%d obsolete assets (%d bytes) kept until an optimize-only run", stats.Count, stats.Bytes)
	case cache.OptimizationImmediate, cache.OptimizationDefault:
		stats := b.cache.Optimize()
		b.log.InfoCache("optimization removed %d assets, %d bytes reclaimed", stats.Count, stats.Bytes)
	}

	b.log.Info("build complete: %d artists, %d releases", len(cat.Artists), len(cat.Releases))
}

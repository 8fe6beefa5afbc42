// Package imageproc is the external-collaborator boundary that turns a
// source image into the square/rectangular JPEG variants the site needs:
// cover thumbnails, artist portraits, page backgrounds and feed images.
// It uses disintegration/imaging (decode, crop, Lanczos resize, JPEG
// encode) rather than shelling out to a second external process alongside
// internal/transcode.
package imageproc

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/go-git/go-billy/v5"

	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/fingerprint/hash"
)

// ResizeMode mirrors the three crop/resize strategies the original
// implementation supports, selected by which kind of variant is being
// produced.
type ResizeMode int

const (
	// ContainInSquare shrinks the image (preserving aspect) so its longer
	// edge is at most MaxEdge; it never crops and never upscales.
	ContainInSquare ResizeMode = iota
	// CoverSquare center-crops to a square, then shrinks so the square's
	// edge is at most EdgeSize.
	CoverSquare
	// CoverRectangle center-crops to the nearest aspect ratio within
	// [MinAspect, MaxAspect], then shrinks so the result's width is at
	// most MaxWidth.
	CoverRectangle
)

// Spec parametrizes one ResizeMode invocation.
type Spec struct {
	Mode ResizeMode

	MaxEdge int // ContainInSquare

	EdgeSize int // CoverSquare

	MinAspect, MaxAspect float64 // CoverRectangle
	MaxWidth             int     // CoverRectangle
}

// Default variant sizes: cover art is offered at three breakpoints, artist
// portraits at one widescreen aspect band, backgrounds and feed images at
// their own fixed ceilings.
var (
	CoverVariantSizes = []int{400, 800, 1400}
	ArtistVariantSpec = Spec{Mode: CoverRectangle, MinAspect: 1.2, MaxAspect: 2.0, MaxWidth: 1600}
	BackgroundSpec    = Spec{Mode: ContainInSquare, MaxEdge: 2400}
	FeedImageSpec     = Spec{Mode: CoverSquare, EdgeSize: 1400}
	ArchiveCoverSpec  = Spec{Mode: ContainInSquare, MaxEdge: 3000}
)

// Processor resizes catalog-relative source images into cache-directory
// JPEG variants.
type Processor struct {
	catalogFS   billy.Filesystem
	catalogRoot string
	fs          billy.Filesystem
	cacheDir    string
}

// NewProcessor returns a Processor reading source images from catalogRoot
// on catalogFS and writing produced JPEGs under cacheDir on fs.
func NewProcessor(catalogFS billy.Filesystem, catalogRoot string, fs billy.Filesystem, cacheDir string) *Processor {
	return &Processor{catalogFS: catalogFS, catalogRoot: catalogRoot, fs: fs, cacheDir: cacheDir}
}

// Resize produces (or reuses, if already cached) the JPEG variant of the
// source image at sourcePath described by spec, returning the asset plus
// its resulting pixel dimensions.
func (p *Processor) Resize(sourcePath string, spec Spec) (*cache.Asset, int, int, error) {
	key := fmt.Sprintf("%d_%d_%d_%g_%g_%d", spec.Mode, spec.MaxEdge, spec.EdgeSize, spec.MinAspect, spec.MaxAspect, spec.MaxWidth)
	filename := hash.SumStrings(sourcePath, key) + ".jpg"
	dstPath := p.cacheDir + "/" + filename

	if info, err := p.fs.Stat(dstPath); err == nil {
		cfg, dimErr := p.decodeConfig(dstPath, p.fs)
		if dimErr != nil {
			return nil, 0, 0, dimErr
		}
		return &cache.Asset{Filename: filename, FilesizeBytes: info.Size()}, cfg.Width, cfg.Height, nil
	}

	srcFull := p.catalogRoot + "/" + sourcePath
	src, err := p.catalogFS.Open(srcFull)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("imageproc: opening %s: %w", sourcePath, err)
	}
	img, _, err := image.Decode(src)
	src.Close()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("imageproc: decoding %s: %w", sourcePath, err)
	}

	transformed := transform(img, spec)
	bounds := transformed.Bounds()

	out, err := p.fs.Create(dstPath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("imageproc: creating %s: %w", dstPath, err)
	}
	if err := imaging.Encode(out, transformed, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		out.Close()
		return nil, 0, 0, fmt.Errorf("imageproc: encoding %s: %w", dstPath, err)
	}
	if err := out.Close(); err != nil {
		return nil, 0, 0, err
	}

	info, err := p.fs.Stat(dstPath)
	if err != nil {
		return nil, 0, 0, err
	}

	return &cache.Asset{Filename: filename, FilesizeBytes: info.Size()}, bounds.Dx(), bounds.Dy(), nil
}

// CoverJPEG is the archive Builder's CoverProcessor collaborator: it
// returns a single JPEG rendition of a release's cover, resized per
// ArchiveCoverSpec and encoded like every other variant, for bundling into
// a download zip.
func (p *Processor) CoverJPEG(img *cache.ImageSet) (*cache.Asset, error) {
	asset, _, _, err := p.Resize(img.Fingerprint.Path, ArchiveCoverSpec)
	return asset, err
}

func (p *Processor) decodeConfig(path string, fs billy.Filesystem) (image.Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

func transform(src image.Image, spec Spec) image.Image {
	switch spec.Mode {
	case ContainInSquare:
		return containInSquare(src, spec.MaxEdge)
	case CoverSquare:
		return coverSquare(src, spec.EdgeSize)
	case CoverRectangle:
		return coverRectangle(src, spec.MinAspect, spec.MaxAspect, spec.MaxWidth)
	default:
		return src
	}
}

func containInSquare(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	longerEdge := b.Dx()
	if b.Dy() > longerEdge {
		longerEdge = b.Dy()
	}
	if maxEdge <= 0 || longerEdge <= maxEdge {
		return src
	}
	factor := float64(maxEdge) / float64(longerEdge)
	newWidth := int(float64(b.Dx()) * factor)
	newHeight := int(float64(b.Dy()) * factor)
	return imaging.Resize(src, newWidth, newHeight, imaging.Lanczos)
}

func coverSquare(src image.Image, edgeSize int) image.Image {
	b := src.Bounds()
	smallerEdge := b.Dx()
	if b.Dy() < smallerEdge {
		smallerEdge = b.Dy()
	}

	cropped := imaging.CropCenter(src, smallerEdge, smallerEdge)

	if edgeSize <= 0 || smallerEdge <= edgeSize {
		return cropped
	}
	return imaging.Resize(cropped, edgeSize, edgeSize, imaging.Lanczos)
}

func coverRectangle(src image.Image, minAspect, maxAspect float64, maxWidth int) image.Image {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	foundAspect := float64(width) / float64(height)

	var cropped image.Image = src
	switch {
	case foundAspect < minAspect:
		newHeight := int(float64(width) / minAspect)
		cropped = imaging.CropCenter(src, width, newHeight)
	case foundAspect > maxAspect:
		newWidth := int(maxAspect * float64(height))
		cropped = imaging.CropCenter(src, newWidth, height)
	}

	croppedWidth := cropped.Bounds().Dx()
	if maxWidth <= 0 || croppedWidth <= maxWidth {
		return cropped
	}
	newHeight := int(float64(cropped.Bounds().Dy()) * float64(maxWidth) / float64(croppedWidth))
	return imaging.Resize(cropped, maxWidth, newHeight, imaging.Lanczos)
}

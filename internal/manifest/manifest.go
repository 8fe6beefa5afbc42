// Package manifest resolves the eno elements found in catalog.eno,
// artist.eno and release.eno files into three scopes: Globals (set once,
// site-wide), Overrides (cascading from parent directory to children,
// overridable at each level), and Local (applies only to the entity
// defined in the file it was read from). It knows nothing about eno's
// grammar — it consumes internal/eno.Element values.
package manifest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"

	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/eno"
	"github.com/faircamp-go/faircamp/internal/format"
)

// Globals holds the options that may be set exactly once, anywhere in the
// catalog. A second, conflicting assignment is reported as an error.
type Globals struct {
	BaseURL           string
	Language          string
	Favicon           string
	CacheOptimization cache.Optimization
	SignatureDisabled bool
	URLSalt           string
	RotateURLs        bool

	set map[string]bool
}

// NewGlobals returns an empty Globals record ready to accumulate values.
func NewGlobals() *Globals {
	return &Globals{set: map[string]bool{}}
}

func (g *Globals) claim(report *diag.Report, file string, line int, key string) bool {
	if g.set == nil {
		g.set = map[string]bool{}
	}
	if g.set[key] {
		report.Fail(file, line, "global option %q is already set elsewhere in the catalog", key)
		return false
	}
	g.set[key] = true
	return true
}

// Overrides holds the cascading options: a directory inherits its parent's
// Overrides and may replace any subset of them for itself and its
// descendants.
type Overrides struct {
	DownloadFormats  []format.Download
	StreamingQuality format.Audio
	Theme            string
	TagRewrite       map[string]string
	// ReleaseArtists and TrackArtists, when set, replace the inferred
	// artist(s) of every release/track under this directory — e.g. a
	// various-artists compilation naming one nominal release artist while
	// each track keeps its own tag-derived artist.
	ReleaseArtists []string
	TrackArtists   []string
}

// DefaultOverrides is the root Overrides value a catalog walk starts from.
func DefaultOverrides() Overrides {
	return Overrides{
		DownloadFormats:  []format.Download{format.DownloadMP3VBR0},
		StreamingQuality: format.AudioOpus128,
		Theme:            "default",
	}
}

// PaymentOption models a Track's pricing, carried but not acted upon (no
// payment processor integration).
type PaymentOption struct {
	Kind    PaymentKind
	Price   float64
	Minimum float64
}

type PaymentKind int

const (
	PaymentFree PaymentKind = iota
	PaymentPaid
	PaymentNameYourPrice
)

// DownloadOption models whether/how a Release offers downloads at all,
// distinct from the per-format DownloadFormats list in Overrides.
type DownloadOption int

const (
	DownloadOptionInherit DownloadOption = iota
	DownloadOptionDisabled
	DownloadOptionFree
	DownloadOptionPaid
)

// Local holds the options that apply only to the entity defined by the
// file they were read from — never inherited by child directories.
type Local struct {
	TitleOverride  string
	ReleaseDate    *time.Time
	Unlisted       bool
	Payment        *PaymentOption
	DownloadOption DownloadOption
	// Aliases lists alternate spellings of an artist's name, used for fuzzy
	// resolution of track/release artist references (artist.eno only).
	Aliases []string
	// Text is free-form descriptive text (artist bio or release text),
	// rendered to HTML by an external markdown collaborator.
	Text string
	// CoverOverride names the image file to use as cover explicitly,
	// bypassing the filename-heuristic/alphabetical-first fallback.
	CoverOverride string
	// PermalinkOverride, when set, is used verbatim instead of a slug
	// generated from the title.
	PermalinkOverride string
}

// Resolver routes eno elements into the three scopes for one directory's
// worth of manifest files.
type Resolver struct {
	Report *diag.Report
}

// New returns a Resolver that reports problems to report.
func New(report *diag.Report) *Resolver {
	return &Resolver{Report: report}
}

// Cascade produces the effective Overrides for a directory: a copy of the
// parent's Overrides with this directory's local changes merged on top.
// Only fields explicitly set by elements in this directory replace the
// inherited value; everything else is carried through unchanged.
func (r *Resolver) Cascade(parent Overrides, elements []eno.Element, file string) Overrides {
	working := parent
	changes := Overrides{}

	for _, el := range elements {
		switch el.Key {
		case "download-formats":
			if el.Kind != eno.KindItems {
				r.Report.Fail(file, el.Line, "download-formats expects a list of items, got %s", kindName(el.Kind))
				continue
			}
			formats := make([]format.Download, 0, len(el.Items))
			for _, item := range el.Items {
				f, ok := parseDownloadFormat(item)
				if !ok {
					r.Report.WarnSnippet(file, el.Line, item, "unrecognized download format")
					continue
				}
				formats = append(formats, f)
			}
			changes.DownloadFormats = formats
		case "streaming-quality":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "streaming-quality expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			f, ok := parseAudioFormat(el.Value)
			if !ok {
				r.Report.WarnSnippet(file, el.Line, el.Value, "unrecognized streaming quality")
				continue
			}
			changes.StreamingQuality = f
		case "theme":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "theme expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			changes.Theme = el.Value
		case "tag-rewrite":
			if el.Kind != eno.KindEntries {
				r.Report.Fail(file, el.Line, "tag-rewrite expects an attribute map, got %s", kindName(el.Kind))
				continue
			}
			rewrite := make(map[string]string, len(el.Entries))
			for _, e := range el.Entries {
				rewrite[e.Key] = e.Value
			}
			changes.TagRewrite = rewrite
		case "release-artists":
			if el.Kind != eno.KindItems {
				r.Report.Fail(file, el.Line, "release-artists expects a list of items, got %s", kindName(el.Kind))
				continue
			}
			changes.ReleaseArtists = append([]string(nil), el.Items...)
		case "track-artists":
			if el.Kind != eno.KindItems {
				r.Report.Fail(file, el.Line, "track-artists expects a list of items, got %s", kindName(el.Kind))
				continue
			}
			changes.TrackArtists = append([]string(nil), el.Items...)
		}
	}

	if err := mergo.Merge(&working, changes, mergo.WithOverride); err != nil {
		r.Report.Fail(file, 0, "merging cascading options: %v", err)
	}
	return working
}

// Globals routes elements that set site-wide Globals fields.
func (r *Resolver) Globals(g *Globals, elements []eno.Element, file string) {
	for _, el := range elements {
		switch el.Key {
		case "base-url":
			if g.claim(r.Report, file, el.Line, el.Key) {
				g.BaseURL = el.Value
			}
		case "language":
			if g.claim(r.Report, file, el.Line, el.Key) {
				g.Language = el.Value
			}
		case "favicon":
			if g.claim(r.Report, file, el.Line, el.Key) {
				g.Favicon = el.Value
			}
		case "cache-optimization":
			if !g.claim(r.Report, file, el.Line, el.Key) {
				continue
			}
			opt, ok := cache.ParseOptimization(el.Value)
			if !ok {
				r.Report.WarnSnippet(file, el.Line, el.Value, "unrecognized cache-optimization policy")
				continue
			}
			g.CacheOptimization = opt
		case "no-signature":
			if g.claim(r.Report, file, el.Line, el.Key) {
				g.SignatureDisabled = true
			}
		case "url-salt":
			if g.claim(r.Report, file, el.Line, el.Key) {
				g.URLSalt = el.Value
			}
		case "rotate-urls":
			if g.claim(r.Report, file, el.Line, el.Key) {
				g.RotateURLs = true
			}
		}
	}
}

// Local routes elements local to the entity defined by this manifest file.
func (r *Resolver) Local(elements []eno.Element, file string) Local {
	var local Local

	for _, el := range elements {
		switch el.Key {
		case "title":
			if el.Kind == eno.KindValue {
				local.TitleOverride = el.Value
			} else {
				r.Report.Fail(file, el.Line, "title expects a scalar value, got %s", kindName(el.Kind))
			}
		case "date":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "date expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			t, err := time.Parse("2006-01-02", el.Value)
			if err != nil {
				r.Report.WarnSnippet(file, el.Line, el.Value, "date is not in YYYY-MM-DD format")
				continue
			}
			local.ReleaseDate = &t
		case "unlisted":
			local.Unlisted = true
		case "payment":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "payment expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			opt, err := parsePaymentOption(el.Value)
			if err != nil {
				r.Report.WarnSnippet(file, el.Line, el.Value, err.Error())
				continue
			}
			local.Payment = &opt
		case "downloads":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "downloads expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			opt, ok := parseDownloadOption(el.Value)
			if !ok {
				r.Report.WarnSnippet(file, el.Line, el.Value, "unrecognized downloads option")
				continue
			}
			local.DownloadOption = opt
		case "aliases":
			if el.Kind != eno.KindItems {
				r.Report.Fail(file, el.Line, "aliases expects a list of items, got %s", kindName(el.Kind))
				continue
			}
			local.Aliases = append([]string(nil), el.Items...)
		case "text":
			if el.Kind != eno.KindEmbed {
				r.Report.Fail(file, el.Line, "text expects an embedded block, got %s", kindName(el.Kind))
				continue
			}
			local.Text = el.Value
		case "cover":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "cover expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			local.CoverOverride = el.Value
		case "permalink":
			if el.Kind != eno.KindValue {
				r.Report.Fail(file, el.Line, "permalink expects a scalar value, got %s", kindName(el.Kind))
				continue
			}
			local.PermalinkOverride = el.Value
		}
	}

	return local
}

// UnknownKey reports an unrecognized top-level key, with a snippet of the
// offending line for context. Called by the catalog walk for any element
// whose key did not match a Globals, Overrides, or Local route.
func (r *Resolver) UnknownKey(el eno.Element, file string) {
	r.Report.WarnSnippet(file, el.Line, el.Key, "unknown manifest key, ignored")
}

// knownKeys lists every key recognized by Globals, Cascade, or Local, so
// callers can classify an element before deciding it is unknown.
var knownKeys = map[string]bool{
	"base-url": true, "language": true, "favicon": true,
	"cache-optimization": true, "no-signature": true,
	"url-salt": true, "rotate-urls": true,
	"download-formats": true, "streaming-quality": true,
	"theme": true, "tag-rewrite": true,
	"release-artists": true, "track-artists": true,
	"title": true, "date": true, "unlisted": true,
	"payment": true, "downloads": true,
	"aliases": true, "text": true, "cover": true, "permalink": true,
}

// KnownKey reports whether key is recognized by any of the three scopes.
func KnownKey(key string) bool { return knownKeys[key] }

func kindName(k eno.Kind) string {
	switch k {
	case eno.KindEmpty:
		return "flag"
	case eno.KindNone:
		return "empty field"
	case eno.KindValue:
		return "scalar"
	case eno.KindItems:
		return "item list"
	case eno.KindEntries:
		return "attribute map"
	case eno.KindEmbed:
		return "embed"
	default:
		return "unknown"
	}
}

func parseDownloadFormat(s string) (format.Download, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mp3", "mp3-v0":
		return format.DownloadMP3VBR0, true
	case "flac":
		return format.DownloadFLAC, true
	case "aac":
		return format.DownloadAAC, true
	case "opus":
		return format.DownloadOpus, true
	case "wav":
		return format.DownloadWAV, true
	case "aiff":
		return format.DownloadAIFF, true
	default:
		return "", false
	}
}

func parseAudioFormat(s string) (format.Audio, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opus128":
		return format.AudioOpus128, true
	case "opus96":
		return format.AudioOpus96, true
	case "opus64":
		return format.AudioOpus64, true
	case "mp3-v0":
		return format.AudioMP3VBR0, true
	case "mp3-v9":
		return format.AudioMP3VBR9, true
	case "flac":
		return format.AudioFLAC, true
	case "aac":
		return format.AudioAAC, true
	default:
		return "", false
	}
}

func parsePaymentOption(s string) (PaymentOption, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "free"):
		return PaymentOption{Kind: PaymentFree}, nil
	case strings.HasPrefix(s, "paid:"):
		price, err := strconv.ParseFloat(strings.TrimPrefix(s, "paid:"), 64)
		if err != nil {
			return PaymentOption{}, fmt.Errorf("invalid paid price %q", s)
		}
		return PaymentOption{Kind: PaymentPaid, Price: price}, nil
	case strings.HasPrefix(s, "name-your-price:"):
		min, err := strconv.ParseFloat(strings.TrimPrefix(s, "name-your-price:"), 64)
		if err != nil {
			return PaymentOption{}, fmt.Errorf("invalid name-your-price minimum %q", s)
		}
		return PaymentOption{Kind: PaymentNameYourPrice, Minimum: min}, nil
	default:
		return PaymentOption{}, fmt.Errorf("unrecognized payment option %q", s)
	}
}

func parseDownloadOption(s string) (DownloadOption, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled":
		return DownloadOptionDisabled, true
	case "free":
		return DownloadOptionFree, true
	case "paid":
		return DownloadOptionPaid, true
	default:
		return DownloadOptionInherit, false
	}
}

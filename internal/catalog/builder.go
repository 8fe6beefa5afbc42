package catalog

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/go-git/go-billy/v5"
	"github.com/hbollon/go-edlib"

	"github.com/faircamp-go/faircamp/internal/arena"
	"github.com/faircamp-go/faircamp/internal/audiometa"
	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/eno"
	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/format"
	"github.com/faircamp-go/faircamp/internal/fsx"
	"github.com/faircamp-go/faircamp/internal/manifest"
)

// artistSimilarityThreshold is the minimum Jaro-Winkler similarity for two
// artist name spellings to be treated as the same artist. Below this, a new
// Artist is created instead.
const artistSimilarityThreshold = 0.92

// Builder walks one catalog directory tree and resolves it into a Catalog.
type Builder struct {
	fs       billy.Filesystem
	root     string
	cache    *cache.Cache
	report   *diag.Report
	log      *diag.Logger
	resolver *manifest.Resolver
	catalog  *Catalog
}

// NewBuilder returns a Builder ready to walk root on fs, using c for asset
// lookups and report/log for diagnostics.
func NewBuilder(fs billy.Filesystem, root string, c *cache.Cache, report *diag.Report, log *diag.Logger) *Builder {
	return &Builder{
		fs:       fs,
		root:     root,
		cache:    c,
		report:   report,
		log:      log,
		resolver: manifest.New(report),
		catalog:  newCatalog(),
	}
}

// Build walks the catalog root and returns the resolved Catalog.
func (b *Builder) Build() (*Catalog, error) {
	if err := b.walk("", manifest.DefaultOverrides()); err != nil {
		return nil, err
	}
	return b.catalog, nil
}

// walk processes one directory: it classifies entries, resolves any
// manifests found in it, builds a Release or registers an Artist if the
// directory qualifies as one, then recurses into subdirectories, passing
// each its own inherited Overrides.
func (b *Builder) walk(dir string, parentOverrides manifest.Overrides) error {
	entries, err := fsx.ListDir(b.fs, filepath.Join(b.root, dir))
	if err != nil {
		return err
	}

	var dirs, metaFiles, trackFiles, imageFiles, extraFiles []string

	for _, e := range entries {
		rel := joinRel(dir, e.Name)
		switch e.Kind {
		case fsx.KindHidden:
			b.log.Debug("ignoring hidden entry %s", rel)
		case fsx.KindSymlink:
			b.report.Warn(rel, 0, "symlink ignored")
		case fsx.KindDir:
			dirs = append(dirs, rel)
		case fsx.KindFile:
			ext := strings.ToLower(filepath.Ext(e.Name))
			switch {
			case ext == ".eno":
				metaFiles = append(metaFiles, rel)
			case format.AudioExtensions[ext]:
				trackFiles = append(trackFiles, rel)
			case format.ImageExtensions[ext]:
				imageFiles = append(imageFiles, rel)
			default:
				extraFiles = append(extraFiles, rel)
			}
		}
	}

	overrides := parentOverrides
	local := manifest.Local{}
	isArtistDir := false

	for _, metaFile := range metaFiles {
		elements, err := b.parseManifest(metaFile)
		if err != nil {
			b.report.Fail(metaFile, 0, "%v", err)
			continue
		}

		if filepath.Base(metaFile) == "artist.eno" {
			isArtistDir = true
		}

		// Global options route by key identity, not by which manifest file
		// or directory they're written in; a duplicate anywhere is an error
		// (enforced by Globals itself).
		b.resolver.Globals(b.catalog.Globals, elements, metaFile)

		overrides = b.resolver.Cascade(overrides, elements, metaFile)
		l := b.resolver.Local(elements, metaFile)
		local = mergeLocal(local, l)

		for _, el := range elements {
			if !manifest.KnownKey(el.Key) {
				b.resolver.UnknownKey(el, metaFile)
			}
		}
	}

	images := make([]string, len(imageFiles))
	copy(images, imageFiles)

	// At the catalog root, a title/text that isn't claimed by an artist or
	// release entity describes the catalog's own index page.
	if dir == "" {
		if local.TitleOverride != "" {
			b.catalog.Title = local.TitleOverride
		}
		if local.Text != "" {
			b.catalog.Text = local.Text
		}
	}

	if isArtistDir && len(trackFiles) == 0 {
		b.buildArtist(dir, local, images)
	} else if len(trackFiles) > 0 {
		if err := b.buildRelease(dir, overrides, local, trackFiles, images, extraFiles); err != nil {
			return err
		}
	} else if len(images) > 0 {
		for _, img := range images {
			handle, _ := b.registerImage(img)
			b.catalog.StrayImages = append(b.catalog.StrayImages, handle)
		}
	}

	for _, sub := range dirs {
		if err := b.walk(sub, overrides); err != nil {
			return err
		}
	}

	return nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func mergeLocal(base, override manifest.Local) manifest.Local {
	if override.TitleOverride != "" {
		base.TitleOverride = override.TitleOverride
	}
	if override.ReleaseDate != nil {
		base.ReleaseDate = override.ReleaseDate
	}
	if override.Unlisted {
		base.Unlisted = true
	}
	if override.Payment != nil {
		base.Payment = override.Payment
	}
	if override.DownloadOption != manifest.DownloadOptionInherit {
		base.DownloadOption = override.DownloadOption
	}
	if len(override.Aliases) > 0 {
		base.Aliases = override.Aliases
	}
	if override.Text != "" {
		base.Text = override.Text
	}
	if override.CoverOverride != "" {
		base.CoverOverride = override.CoverOverride
	}
	if override.PermalinkOverride != "" {
		base.PermalinkOverride = override.PermalinkOverride
	}
	return base
}

func (b *Builder) parseManifest(path string) ([]eno.Element, error) {
	data, err := readFile(b.fs, filepath.Join(b.root, path))
	if err != nil {
		return nil, err
	}
	return eno.Parse(string(data))
}

func (b *Builder) buildArtist(dir string, local manifest.Local, images []string) {
	name := local.TitleOverride
	if name == "" {
		name = filepath.Base(dir)
	}

	ref := b.resolveArtist(name, local.Aliases)
	artist := &b.catalog.Artists[ref]
	artist.Text = local.Text
	artist.Aliases = appendUnique(artist.Aliases, local.Aliases)

	if cover := pickCover(images, local.CoverOverride); cover != "" {
		handle, _ := b.registerImage(joinRel(dir, filepath.Base(cover)))
		artist.Image = handle
		artist.HasImage = true
	}
}

// buildRelease resolves one release directory: title (majority-vote album
// tag, falling back to the directory name), track order, cover heuristic,
// and release-level artist resolution.
func (b *Builder) buildRelease(dir string, overrides manifest.Overrides, local manifest.Local, trackFiles, images, extras []string) error {
	type builtTrack struct {
		track Track
		album string
	}

	built := make([]builtTrack, 0, len(trackFiles))
	albumVotes := map[string]int{}

	for _, tf := range trackFiles {
		ext := strings.ToLower(filepath.Ext(tf))
		full := filepath.Join(b.root, tf)

		fp, err := fingerprint.New(b.fs, b.root, tf)
		if err != nil {
			b.report.Fail(tf, 0, "%v", err)
			continue
		}

		handle, ts, err := b.cache.GetOrCreateTranscodes(fp, full, ext)
		if err != nil {
			b.report.Fail(tf, 0, "extracting audio metadata: %v", err)
			continue
		}

		var artistRefs []ArtistRef
		if len(overrides.TrackArtists) > 0 {
			for _, name := range overrides.TrackArtists {
				artistRefs = append(artistRefs, b.resolveArtist(name, nil))
			}
		} else if name, ok := ts.Meta.Tags["ARTIST"]; ok && name != "" {
			artistRefs = []ArtistRef{b.resolveArtist(name, nil)}
		} else {
			artistRefs = []ArtistRef{b.resolveArtist("", nil)}
		}

		title := audiometa.DefaultTitleFromFilename(tf)
		if v, ok := ts.Meta.Tags["TITLE"]; ok && v != "" {
			title = v
		}

		track := Track{
			Artists:    artistRefs,
			Title:      title,
			SourcePath: tf,
			Transcodes: handle,
		}
		if n, ok := ts.Meta.TrackNumber(); ok {
			track.TrackNumber = n
			track.HasTrackNum = true
		}
		if local.Payment != nil {
			track.Payment = local.Payment
		}

		album := ""
		if v, ok := ts.Meta.AlbumTitle(); ok {
			album = v
			albumVotes[album]++
		}

		built = append(built, builtTrack{track: track, album: album})
	}

	if len(built) == 0 {
		return nil
	}

	list := arraylist.New()
	for _, bt := range built {
		list.Add(bt)
	}
	list.Sort(func(x, y interface{}) int {
		a, b := x.(builtTrack), y.(builtTrack)
		switch {
		case a.track.HasTrackNum && b.track.HasTrackNum:
			return a.track.TrackNumber - b.track.TrackNumber
		case a.track.HasTrackNum:
			return -1
		case b.track.HasTrackNum:
			return 1
		default:
			return strings.Compare(a.track.SourcePath, b.track.SourcePath)
		}
	})

	tracks := make([]Track, 0, list.Size())
	list.Each(func(_ int, v interface{}) { tracks = append(tracks, v.(builtTrack).track) })

	title := local.TitleOverride
	if title == "" {
		title = majorityVote(albumVotes)
	}
	if title == "" {
		title = filepath.Base(dir)
		if title == "" || title == "." {
			title = "Untitled"
		}
	}

	var releaseArtists []ArtistRef
	if len(overrides.ReleaseArtists) > 0 {
		for _, name := range overrides.ReleaseArtists {
			releaseArtists = append(releaseArtists, b.resolveArtist(name, nil))
		}
	} else {
		seen := map[ArtistRef]bool{}
		for _, t := range tracks {
			for _, a := range t.Artists {
				if !seen[a] {
					seen[a] = true
					releaseArtists = append(releaseArtists, a)
				}
			}
		}
	}

	var permalink Permalink
	if local.PermalinkOverride != "" {
		p, err := NewExplicitPermalink(local.PermalinkOverride)
		if err != nil {
			b.report.Fail(dir, 0, "%v", err)
			permalink = GeneratePermalink(title)
		} else {
			permalink = p
		}
	} else {
		permalink = GeneratePermalink(title)
	}
	if !b.catalog.permalinks.Claim(ScopeRelease, permalink.Slug) {
		b.report.Fail(dir, 0, "permalink %q collides with an existing release permalink", permalink.Slug)
	}

	release := Release{
		Artists:     releaseArtists,
		Title:       title,
		Permalink:   permalink,
		Tracks:      tracks,
		Extras:      extras,
		Overrides:   overrides,
		Local:       local,
		Unlisted:    local.Unlisted,
		DownloadOpt: local.DownloadOption,
		SourceDir:   dir,
	}

	if cover := pickCover(images, local.CoverOverride); cover != "" {
		handle, err := b.registerImage(joinRel(dir, filepath.Base(cover)))
		if err == nil {
			release.Cover = handle
			release.HasCover = true
		}
	}

	b.catalog.Releases = append(b.catalog.Releases, release)
	return nil
}

// pickCover applies the cover heuristic: an explicit override wins; failing
// that, a filename starting with "cover" (case-insensitive); failing that,
// the alphabetically first image.
func pickCover(images []string, override string) string {
	if override != "" {
		for _, img := range images {
			if filepath.Base(img) == override {
				return img
			}
		}
	}
	if len(images) == 0 {
		return ""
	}
	candidates := append([]string(nil), images...)
	sort.Strings(candidates)
	for _, img := range candidates {
		if strings.HasPrefix(strings.ToLower(filepath.Base(img)), "cover") {
			return img
		}
	}
	return candidates[0]
}

func majorityVote(votes map[string]int) string {
	best := ""
	bestCount := 0
	for title, count := range votes {
		if count > bestCount || (count == bestCount && title < best) {
			best = title
			bestCount = count
		}
	}
	return best
}

func (b *Builder) registerImage(relPath string) (arena.Handle, error) {
	fp, err := fingerprint.New(b.fs, b.root, relPath)
	if err != nil {
		b.report.Warn(relPath, 0, "%v", err)
		return 0, err
	}
	handle, _ := b.cache.GetOrCreateImage(fp)
	return handle, nil
}

// resolveArtist finds or creates the Artist matching name (fuzzily, against
// every known artist's name and aliases) or, if name is empty, the shared
// "unknown artist" sentinel.
func (b *Builder) resolveArtist(name string, aliases []string) ArtistRef {
	if name == "" {
		name = UnknownArtistName
	}

	if ref, ok := b.catalog.artistIndex[strings.ToLower(name)]; ok {
		return ref
	}

	for i := range b.catalog.Artists {
		a := &b.catalog.Artists[i]
		if similarEnough(a.Name, name) {
			b.catalog.artistIndex[strings.ToLower(name)] = ArtistRef(i)
			return ArtistRef(i)
		}
		for _, alias := range a.Aliases {
			if similarEnough(alias, name) {
				b.catalog.artistIndex[strings.ToLower(name)] = ArtistRef(i)
				return ArtistRef(i)
			}
		}
	}

	permalink := GeneratePermalink(name)
	if !b.catalog.permalinks.Claim(ScopeArtist, permalink.Slug) {
		b.report.Fail("", 0, "artist %q: permalink %q collides with an existing artist permalink", name, permalink.Slug)
	}

	ref := ArtistRef(len(b.catalog.Artists))
	b.catalog.Artists = append(b.catalog.Artists, Artist{
		Name:      name,
		Aliases:   append([]string(nil), aliases...),
		Permalink: permalink,
	})
	b.catalog.artistIndex[strings.ToLower(name)] = ref
	return ref
}

func similarEnough(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return false
	}
	return float64(sim) >= artistSimilarityThreshold
}

func appendUnique(existing, add []string) []string {
	seen := map[string]bool{}
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			existing = append(existing, s)
		}
	}
	return existing
}

func readFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

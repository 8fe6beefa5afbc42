package build

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/faircamp-go/faircamp/internal/catalog"
	"github.com/faircamp-go/faircamp/internal/fsx"
	"github.com/faircamp-go/faircamp/internal/manifest"
	"github.com/faircamp-go/faircamp/internal/urlplan"
)

// emit is the third build pipeline phase: it recreates the output
// directory, places produced assets at their hashed URL paths (release
// cover variants stay in the cache and are not copied), and
// renders the site's HTML/RSS/M3U pages. Template rendering itself is kept
// minimal here: this package owns only the page shape needed to produce a
// working static site, not a themeable templating system.
func (b *Build) emit(cat *catalog.Catalog, planner *urlplan.Planner) error {
	if err := fsx.EnsureEmptyDir(b.outputFS, "."); err != nil {
		return fmt.Errorf("emit: preparing output directory: %w", err)
	}

	for i := range cat.Releases {
		if err := b.emitRelease(cat, &cat.Releases[i], planner); err != nil {
			return err
		}
	}

	for i := range cat.Artists {
		if err := b.emitArtist(cat, &cat.Artists[i]); err != nil {
			return err
		}
	}

	if err := b.emitIndex(cat); err != nil {
		return err
	}
	if err := b.emitFeed(cat); err != nil {
		return err
	}
	if err := b.emitPlaylist(cat); err != nil {
		return err
	}

	return nil
}

func (b *Build) emitIndex(cat *catalog.Catalog) error {
	title := cat.Title
	if title == "" {
		title = "Catalog"
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, indexPage{
		Title:    title,
		Text:     cat.Text,
		Releases: cat.Releases,
		Artists:  cat.Artists,
	}); err != nil {
		return fmt.Errorf("emit: rendering index: %w", err)
	}
	return writeFile(b.outputFS, "index.html", buf.Bytes())
}

func (b *Build) emitArtist(cat *catalog.Catalog, artist *catalog.Artist) error {
	var buf bytes.Buffer
	if err := artistTemplate.Execute(&buf, artistPage{Name: artist.Name, Text: artist.Text}); err != nil {
		return fmt.Errorf("emit: rendering artist %s: %w", artist.Name, err)
	}
	return writeFile(b.outputFS, artist.Permalink.Slug+"/index.html", buf.Bytes())
}

func (b *Build) emitRelease(cat *catalog.Catalog, release *catalog.Release, planner *urlplan.Planner) error {
	if release.Unlisted {
		return nil
	}

	slug := release.Permalink.Slug
	artistNames := artistNames(cat, release.Artists)

	trackPages := make([]trackPage, len(release.Tracks))
	for i := range release.Tracks {
		track := &release.Tracks[i]
		ts := b.cache.Transcodes.Get(track.Transcodes)

		primaryAsset := ts.Get(release.Overrides.StreamingQuality)
		var streamPath string
		if primaryAsset != nil {
			formatDir := string(release.Overrides.StreamingQuality)
			hashSeg := planner.Segment(slug, formatDir, primaryAsset.Filename)
			streamPath = fmt.Sprintf("%s/%s/%s/%s", slug, formatDir, hashSeg, primaryAsset.Filename)
			if err := fsx.CopyOrLink(b.cacheFS, b.outputFS, primaryAsset.Filename, streamPath); err != nil {
				return fmt.Errorf("emit: placing track asset for %s: %w", track.SourcePath, err)
			}
		}

		trackPages[i] = trackPage{
			Index:      i + 1,
			Title:      track.Title,
			AudioURL:   streamPath,
			ArtistList: artistNames,
		}

		var tbuf bytes.Buffer
		if err := trackTemplate.Execute(&tbuf, trackPages[i]); err != nil {
			return fmt.Errorf("emit: rendering track %d of %s: %w", i+1, slug, err)
		}
		if err := writeFile(b.outputFS, fmt.Sprintf("%s/%d/index.html", slug, i+1), tbuf.Bytes()); err != nil {
			return err
		}
	}

	if release.DownloadOpt != manifest.DownloadOptionDisabled {
		archives := b.cache.Archives.Get(release.Archives)
		if archives != nil {
			for _, f := range release.Overrides.DownloadFormats {
				asset := archives.Get(f)
				if asset == nil {
					continue
				}
				hashSeg := planner.Segment(slug, "downloads", asset.Filename)
				dstPath := fmt.Sprintf("%s/downloads/%s/%s", slug, hashSeg, asset.Filename)
				if err := fsx.CopyOrLink(b.cacheFS, b.outputFS, asset.Filename, dstPath); err != nil {
					return fmt.Errorf("emit: placing archive for %s: %w", slug, err)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := releaseTemplate.Execute(&buf, releasePage{
		Title:      release.Title,
		ArtistList: artistNames,
		Tracks:     trackPages,
	}); err != nil {
		return fmt.Errorf("emit: rendering release %s: %w", slug, err)
	}
	return writeFile(b.outputFS, slug+"/index.html", buf.Bytes())
}

func (b *Build) emitFeed(cat *catalog.Catalog) error {
	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       cat.Title,
			Description: cat.Text,
			Link:        cat.Globals.BaseURL,
		},
	}
	for i := range cat.Releases {
		release := &cat.Releases[i]
		if release.Unlisted {
			continue
		}
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title: release.Title,
			Link:  joinURL(cat.Globals.BaseURL, release.Permalink.Slug),
			GUID:  joinURL(cat.Globals.BaseURL, release.Permalink.Slug),
		})
	}

	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("emit: marshaling feed: %w", err)
	}
	out = append([]byte(xml.Header), out...)
	return writeFile(b.outputFS, "feed.rss", out)
}

func (b *Build) emitPlaylist(cat *catalog.Catalog) error {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for i := range cat.Releases {
		release := &cat.Releases[i]
		if release.Unlisted {
			continue
		}
		for j := range release.Tracks {
			track := &release.Tracks[j]
			ts := b.cache.Transcodes.Get(track.Transcodes)
			asset := ts.Get(release.Overrides.StreamingQuality)
			if asset == nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("#EXTINF:-1,%s\n", track.Title))
			sb.WriteString(joinURL(cat.Globals.BaseURL, fmt.Sprintf("%s/%d/index.html", release.Permalink.Slug, j+1)))
			sb.WriteString("\n")
		}
	}
	return writeFile(b.outputFS, "playlist.m3u", []byte(sb.String()))
}

func artistNames(cat *catalog.Catalog, refs []catalog.ArtistRef) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = cat.Artists[ref].Name
	}
	if len(names) == 0 {
		return catalog.UnknownArtistName
	}
	return strings.Join(names, ", ")
}

func joinURL(base, path string) string {
	if base == "" {
		return "/" + path
	}
	return strings.TrimRight(base, "/") + "/" + path
}

func writeFile(fs billy.Filesystem, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("emit: creating parent dir for %s: %w", path, err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("emit: creating %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("emit: writing %s: %w", path, err)
	}
	return f.Close()
}

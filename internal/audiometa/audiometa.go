// Package audiometa extracts per-track metadata from a source audio file.
// FLAC files yield channels, sample rate, duration, Vorbis comment tags and
// embedded artwork; ID3v2-tagged files yield tags and embedded artwork only,
// with channels, sample rate and duration left zero. Every file gets a
// lossless flag guessed from its extension. Meta.Peaks is never filled in:
// no waveform samples are computed. Extraction is the one
// piece of "transcoding" work this repository does itself rather than
// delegating to the external transcoder.
package audiometa

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
	"github.com/mewkiz/flac"
)

// Meta is the extracted metadata for one source audio file.
type Meta struct {
	Channels         int
	SampleRate       int
	DurationSeconds  float64
	Peaks            []float32
	Lossless         bool
	Tags             map[string]string
	EmbeddedArtwork  []byte
	EmbeddedArtMime  string
}

// lossless is the set of extensions whose container format never
// lossy-compresses.
var lossless = map[string]bool{
	".flac": true,
	".wav":  true,
	".aif":  true,
	".aiff": true,
}

// Extract reads container-level audio metadata and tags from path. The
// extension (already lowercased, including the dot) selects the decoder;
// unrecognized extensions still produce a Meta with Lossless guessed from
// the extension table and no further fields populated, rather than erroring
// out, because AudioMeta is always persisted once created.
func Extract(path, extension string) (Meta, error) {
	ext := strings.ToLower(extension)
	meta := Meta{Lossless: lossless[ext], Tags: map[string]string{}}

	switch ext {
	case ".flac":
		return extractFLAC(path)
	case ".mp3", ".aac", ".m4a", ".wav", ".aif", ".aiff":
		return extractID3(path, meta)
	default:
		return meta, nil
	}
}

func extractFLAC(path string) (Meta, error) {
	meta := Meta{Lossless: true, Tags: map[string]string{}}

	stream, err := flac.ParseFile(path)
	if err != nil {
		return meta, fmt.Errorf("audiometa: parsing flac stream info for %s: %w", path, err)
	}
	defer stream.Close()

	meta.Channels = int(stream.Info.NChannels)
	meta.SampleRate = int(stream.Info.SampleRate)
	if stream.Info.SampleRate > 0 {
		meta.DurationSeconds = float64(stream.Info.NSamples) / float64(stream.Info.SampleRate)
	}

	raw, err := goflac.ParseFile(path)
	if err != nil {
		// Stream info decoded fine; tag/picture blocks are a bonus, not fatal.
		return meta, nil
	}

	for _, block := range raw.Meta {
		switch block.Type {
		case goflac.VorbisComment:
			if comments, err := flacvorbis.ParseFromMetaDataBlock(*block); err == nil {
				for _, c := range comments.Comments {
					if k, v, ok := splitTag(c); ok {
						meta.Tags[strings.ToUpper(k)] = v
					}
				}
			}
		case goflac.Picture:
			if pic, err := flacpicture.ParseFromMetaDataBlock(*block); err == nil && meta.EmbeddedArtwork == nil {
				meta.EmbeddedArtwork = pic.ImageData
				meta.EmbeddedArtMime = pic.MIME
			}
		}
	}

	return meta, nil
}

func splitTag(comment string) (key, value string, ok bool) {
	idx := strings.IndexByte(comment, '=')
	if idx < 0 {
		return "", "", false
	}
	return comment[:idx], comment[idx+1:], true
}

func extractID3(path string, meta Meta) (Meta, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		// No readable tags is not fatal: an untagged file is still a valid
		// track.
		return meta, nil
	}
	defer tag.Close()

	if v := tag.Artist(); v != "" {
		meta.Tags["ARTIST"] = v
	}
	if v := tag.Album(); v != "" {
		meta.Tags["ALBUM"] = v
	}
	if v := tag.Title(); v != "" {
		meta.Tags["TITLE"] = v
	}
	if v := tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text; v != "" {
		meta.Tags["TRACKNUMBER"] = v
	}

	if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) > 0 {
		if pic, ok := pics[0].(id3v2.PictureFrame); ok {
			meta.EmbeddedArtwork = pic.Picture
			meta.EmbeddedArtMime = pic.MimeType
		}
	}

	return meta, nil
}

// TrackNumber parses the TRACKNUMBER tag (possibly "3/12" style), returning
// ok=false when absent or unparsable, so catalog.Builder can fall back to
// alphabetical ordering.
func (m Meta) TrackNumber() (n int, ok bool) {
	raw, present := m.Tags["TRACKNUMBER"]
	if !present {
		return 0, false
	}
	raw = strings.TrimSpace(strings.SplitN(raw, "/", 2)[0])
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// AlbumTitle reads the ALBUM tag, used for the release-title majority vote
// across a release's tracks.
func (m Meta) AlbumTitle() (string, bool) {
	v, ok := m.Tags["ALBUM"]
	return v, ok && v != ""
}

// DefaultTitleFromFilename derives a track title from its filename when no
// TITLE tag is present, stripping the extension.
func DefaultTitleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

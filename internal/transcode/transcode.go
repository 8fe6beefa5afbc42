// Package transcode is the thin external-collaborator boundary that turns a
// source audio file into any of the streaming or download formats the
// cache engine tracks. It shells out to ffmpeg, the same way the original
// implementation's ffmpeg module does — there is no Go-native encoder in
// the example pack (or in the wider ecosystem) covering Opus/MP3/AAC/FLAC
// encoding with ffmpeg's breadth and quality, so a subprocess is the
// idiomatic choice here, not a standard-library stand-in for a library
// that exists.
package transcode

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/go-git/go-billy/v5"

	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/fingerprint/hash"
	"github.com/faircamp-go/faircamp/internal/format"
)

// Transcoder produces and caches streaming/download format assets for one
// build's TranscodeSets, invoking ffmpeg on demand and persisting the
// updated manifest once a new asset is produced.
type Transcoder struct {
	catalogFS   billy.Filesystem
	catalogRoot string
	fs          billy.Filesystem
	cacheDir    string
	cache       *cache.Cache
	log         *diag.Logger
	ffmpeg      string
}

// NewTranscoder returns a Transcoder reading source files from catalogRoot
// on catalogFS and writing produced files under cacheDir on fs.
// ffmpegBinary is the executable name or path to invoke; "ffmpeg" is the
// sensible default.
func NewTranscoder(catalogFS billy.Filesystem, catalogRoot string, fs billy.Filesystem, cacheDir string, c *cache.Cache, log *diag.Logger, ffmpegBinary string) *Transcoder {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Transcoder{
		catalogFS:   catalogFS,
		catalogRoot: catalogRoot,
		fs:          fs,
		cacheDir:    cacheDir,
		cache:       c,
		log:         log,
		ffmpeg:      ffmpegBinary,
	}
}

// TranscodeStreaming returns the Asset for ts in streaming format f,
// producing it via ffmpeg if it isn't already cached.
func (t *Transcoder) TranscodeStreaming(ts *cache.TranscodeSet, f format.Audio) (*cache.Asset, error) {
	if a := ts.Get(f); a != nil {
		return a, nil
	}

	args, ext := streamingArgs(f)
	asset, err := t.run(ts.Fingerprint.Path, string(f), ext, args)
	if err != nil {
		return nil, err
	}

	ts.Set(f, asset)
	t.cache.PersistTranscodes(ts)
	return asset, nil
}

// TranscodeForDownload is the archive Builder's TrackTranscoder
// collaborator: it returns the Asset for ts in download format f,
// producing it via ffmpeg if needed. Download-format assets are kept
// outside the TranscodeSet's streaming-format map (archives have their own
// "has this format been produced for this archive" bookkeeping in
// ArchiveSet), so this always re-derives the filename from the source path
// and format key and
// reuses the file on disk rather than mutating ts.
func (t *Transcoder) TranscodeForDownload(ts *cache.TranscodeSet, f format.Download) (*cache.Asset, error) {
	args, ext := downloadArgs(f)
	key := "download_" + string(f)
	return t.run(ts.Fingerprint.Path, key, ext, args)
}

func (t *Transcoder) run(sourcePath, formatKey, ext string, ffmpegArgs func(src, dst string) []string) (*cache.Asset, error) {
	filename := hash.SumStrings(sourcePath, formatKey) + "." + ext
	dstPath := t.cacheDir + "/" + filename

	if info, err := t.fs.Stat(dstPath); err == nil {
		return &cache.Asset{Filename: filename, FilesizeBytes: info.Size()}, nil
	}

	srcFull, ok := underlyingPath(t.catalogFS, filepath.Join(t.catalogRoot, sourcePath))
	if !ok {
		return nil, fmt.Errorf("transcode: catalog filesystem is not an OS filesystem, cannot invoke ffmpeg directly")
	}

	dstFull, ok := underlyingPath(t.fs, dstPath)
	if !ok {
		return nil, fmt.Errorf("transcode: cache filesystem is not an OS filesystem, cannot invoke ffmpeg directly")
	}

	cmd := exec.Command(t.ffmpeg, ffmpegArgs(srcFull, dstFull)...)
	t.log.Debug("transcoding %s to %s", sourcePath, formatKey)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("transcode: ffmpeg failed for %s (%s): %w: %s", sourcePath, formatKey, err, out)
	}

	info, err := t.fs.Stat(dstPath)
	if err != nil {
		return nil, fmt.Errorf("transcode: stat produced asset %s: %w", dstPath, err)
	}

	return &cache.Asset{Filename: filename, FilesizeBytes: info.Size()}, nil
}

// osRooter mirrors fsx's private interface: go-billy's osfs.Filesystem
// exposes a real absolute path, which ffmpeg (an external process) needs
// since it cannot write through a billy.Filesystem abstraction.
type osRooter interface {
	Root() string
}

func underlyingPath(fs billy.Filesystem, path string) (string, bool) {
	if r, ok := fs.(osRooter); ok {
		return r.Root() + "/" + path, true
	}
	return "", false
}

func streamingArgs(f format.Audio) (func(src, dst string) []string, string) {
	ext := f.Extension()
	switch f {
	case format.AudioOpus128:
		return opusArgs(128), ext
	case format.AudioOpus96:
		return opusArgs(96), ext
	case format.AudioOpus64:
		return opusArgs(64), ext
	case format.AudioMP3VBR0:
		return mp3Args(0), ext
	case format.AudioMP3VBR9:
		return mp3Args(9), ext
	case format.AudioFLAC:
		return codecArgs("flac"), ext
	case format.AudioAAC:
		return codecArgs("aac"), ext
	default:
		return codecArgs("copy"), ext
	}
}

func downloadArgs(f format.Download) (func(src, dst string) []string, string) {
	ext := f.Extension()
	switch f {
	case format.DownloadMP3VBR0:
		return mp3Args(0), ext
	case format.DownloadFLAC:
		return codecArgs("flac"), ext
	case format.DownloadAAC:
		return codecArgs("aac"), ext
	case format.DownloadOpus:
		return opusArgs(128), ext
	case format.DownloadWAV:
		return codecArgs("pcm_s16le"), ext
	case format.DownloadAIFF:
		// AIFF is big-endian by convention; ffmpeg's muxer expects the
		// matching big-endian PCM codec, not WAV's little-endian one.
		return codecArgs("pcm_s16be"), ext
	default:
		return codecArgs("copy"), ext
	}
}

func opusArgs(kbps int) func(src, dst string) []string {
	return func(src, dst string) []string {
		return []string{"-y", "-i", src, "-c:a", "libopus", "-b:a", fmt.Sprintf("%dk", kbps), dst}
	}
}

func mp3Args(vbrQuality int) func(src, dst string) []string {
	return func(src, dst string) []string {
		return []string{"-y", "-i", src, "-c:a", "libmp3lame", "-q:a", fmt.Sprintf("%d", vbrQuality), dst}
	}
}

func codecArgs(codec string) func(src, dst string) []string {
	return func(src, dst string) []string {
		return []string{"-y", "-i", src, "-c:a", codec, dst}
	}
}

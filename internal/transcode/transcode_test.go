package transcode

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/faircamp-go/faircamp/internal/cache"
	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/fingerprint/hash"
	"github.com/faircamp-go/faircamp/internal/format"
)

func TestStreamingArgsOpusIncludesBitrate(t *testing.T) {
	args, ext := streamingArgs(format.AudioOpus96)
	if ext != format.AudioOpus96.Extension() {
		t.Errorf("extension = %q, want %q", ext, format.AudioOpus96.Extension())
	}

	got := args("in.flac", "out.opus")
	want := []string{"-y", "-i", "in.flac", "-c:a", "libopus", "-b:a", "96k", "out.opus"}
	assertArgsEqual(t, got, want)
}

func TestStreamingArgsMP3IncludesVBRQuality(t *testing.T) {
	args, _ := streamingArgs(format.AudioMP3VBR0)
	got := args("in.flac", "out.mp3")
	want := []string{"-y", "-i", "in.flac", "-c:a", "libmp3lame", "-q:a", "0", "out.mp3"}
	assertArgsEqual(t, got, want)
}

func TestStreamingArgsFLACUsesFLACCodec(t *testing.T) {
	args, _ := streamingArgs(format.AudioFLAC)
	got := args("in.wav", "out.flac")
	want := []string{"-y", "-i", "in.wav", "-c:a", "flac", "out.flac"}
	assertArgsEqual(t, got, want)
}

func TestDownloadArgsWAVUsesLittleEndianPCM(t *testing.T) {
	args, _ := downloadArgs(format.DownloadWAV)
	got := args("in.flac", "out.wav")
	want := []string{"-y", "-i", "in.flac", "-c:a", "pcm_s16le", "out.wav"}
	assertArgsEqual(t, got, want)
}

func TestDownloadArgsAIFFUsesBigEndianPCM(t *testing.T) {
	args, _ := downloadArgs(format.DownloadAIFF)
	got := args("in.flac", "out.aiff")
	want := []string{"-y", "-i", "in.flac", "-c:a", "pcm_s16be", "out.aiff"}
	assertArgsEqual(t, got, want)
}

func TestDownloadArgsWAVAndAIFFDiffer(t *testing.T) {
	wavArgs, _ := downloadArgs(format.DownloadWAV)
	aiffArgs, _ := downloadArgs(format.DownloadAIFF)

	wav := wavArgs("in.flac", "out.wav")
	aiff := aiffArgs("in.flac", "out.aiff")

	if wav[4] == aiff[4] {
		t.Errorf("WAV and AIFF must use different PCM codecs, both got %q", wav[4])
	}
}

func TestRunUsesDownloadKeyIndependentOfStreamingKey(t *testing.T) {
	// TranscodeForDownload keys its cache filename with a "download_"
	// prefix so it can never collide with a streaming format's key, even
	// though AudioFLAC and DownloadFLAC share the format tag "flac". The
	// download asset is placed in the cache up front, so run reuses it
	// instead of invoking ffmpeg.
	fs := memfs.New()
	downloadFilename := hash.SumStrings("01.flac", "download_"+string(format.DownloadFLAC)) + "." + format.DownloadFLAC.Extension()
	f, err := fs.Create(downloadFilename)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	tr := NewTranscoder(fs, ".", fs, ".", nil, &diag.Logger{}, "")
	ts := &cache.TranscodeSet{Fingerprint: fingerprint.Fingerprint{Path: "01.flac"}}
	asset, err := tr.TranscodeForDownload(ts, format.DownloadFLAC)
	if err != nil {
		t.Fatal(err)
	}
	if asset.Filename != downloadFilename {
		t.Fatalf("download filename = %q, want %q", asset.Filename, downloadFilename)
	}

	streamingFilename := hash.SumStrings("01.flac", string(format.AudioFLAC)) + "." + format.AudioFLAC.Extension()
	if asset.Filename == streamingFilename {
		t.Fatal("download key must differ from the raw streaming key")
	}
}

func assertArgsEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}

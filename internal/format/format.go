// Package format defines the closed sets of audio streaming/download
// formats faircamp produces.
package format

// Audio identifies one transcoded streaming audio format.
type Audio string

const (
	AudioOpus128 Audio = "opus128"
	AudioOpus96  Audio = "opus96"
	AudioOpus64  Audio = "opus64"
	AudioMP3VBR0 Audio = "mp3_vbr0"
	AudioMP3VBR9 Audio = "mp3_vbr9"
	AudioFLAC    Audio = "flac"
	AudioAAC     Audio = "aac"
)

// AllAudio enumerates every supported streaming/transcode format, used by
// the cache engine to iterate a TranscodeSet deterministically.
var AllAudio = []Audio{AudioOpus128, AudioOpus96, AudioOpus64, AudioMP3VBR0, AudioMP3VBR9, AudioFLAC, AudioAAC}

func (a Audio) Extension() string {
	switch a {
	case AudioOpus128, AudioOpus96, AudioOpus64:
		return "opus"
	case AudioMP3VBR0, AudioMP3VBR9:
		return "mp3"
	case AudioFLAC:
		return "flac"
	case AudioAAC:
		return "aac"
	default:
		return "bin"
	}
}

// Lossless reports whether the format preserves the source bit-for-bit.
func (a Audio) Lossless() bool {
	return a == AudioFLAC
}

// Download identifies one archive/download audio format. Download formats largely mirror streaming formats but
// are tracked as a distinct closed set because download policy (free/paid,
// discouragement of lossless-from-lossy) applies only here.
type Download string

const (
	DownloadMP3VBR0 Download = "mp3_vbr0"
	DownloadFLAC    Download = "flac"
	DownloadAAC     Download = "aac"
	DownloadOpus    Download = "opus"
	DownloadWAV     Download = "wav"
	DownloadAIFF    Download = "aiff"
)

// AllDownload enumerates every supported download/archive format, in the
// order the cache engine and archive builder iterate it.
var AllDownload = []Download{DownloadMP3VBR0, DownloadFLAC, DownloadAAC, DownloadOpus, DownloadWAV, DownloadAIFF}

func (d Download) Extension() string {
	switch d {
	case DownloadMP3VBR0:
		return "mp3"
	case DownloadFLAC:
		return "flac"
	case DownloadAAC:
		return "aac"
	case DownloadOpus:
		return "opus"
	case DownloadWAV:
		return "wav"
	case DownloadAIFF:
		return "aiff"
	default:
		return "bin"
	}
}

// Lossless reports whether the download format is bit-for-bit lossless,
// used by the Archive Builder's discouragement check.
func (d Download) Lossless() bool {
	switch d {
	case DownloadFLAC, DownloadWAV, DownloadAIFF:
		return true
	default:
		return false
	}
}

// AsAudioFormat maps a download format to the streaming format that
// produces equivalent audio. The archive builder does not use it: download
// formats are transcoded under their own cache keys.
func (d Download) AsAudioFormat() Audio {
	switch d {
	case DownloadMP3VBR0:
		return AudioMP3VBR0
	case DownloadFLAC:
		return AudioFLAC
	case DownloadAAC:
		return AudioAAC
	case DownloadOpus:
		return AudioOpus128
	default:
		return AudioFLAC
	}
}

// AudioExtensions lists the source file extensions recognized as audio,
// the catalog walk's one reference point for what counts as a track.
var AudioExtensions = map[string]bool{
	".flac": true, ".mp3": true, ".ogg": true, ".wav": true,
	".aif": true, ".aiff": true, ".aac": true, ".opus": true, ".m4a": true,
}

// ImageExtensions lists the source file extensions recognized as candidate
// images.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

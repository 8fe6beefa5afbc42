package audiometa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractUnrecognizedExtensionReturnsBareMeta(t *testing.T) {
	meta, err := Extract("whatever.xyz", ".xyz")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Lossless {
		t.Error("an unrecognized extension should not be guessed lossless")
	}
	if meta.Tags == nil {
		t.Error("Tags should be initialized even for an unrecognized extension")
	}
}

func TestExtractID3OnUnreadableFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, []byte("not a real mp3 file"), 0o644); err != nil {
		t.Fatal(err)
	}

	meta, err := Extract(path, ".mp3")
	if err != nil {
		t.Fatalf("an unparsable ID3 block should not be a fatal error: %v", err)
	}
	if len(meta.Tags) != 0 {
		t.Errorf("Tags = %v, want empty for an untagged file", meta.Tags)
	}
}

func TestMetaTrackNumberParsesPlainAndSlashForm(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"3", 3, true},
		{"3/12", 3, true},
		{" 7 ", 7, true},
		{"not-a-number", 0, false},
	}
	for _, c := range cases {
		m := Meta{Tags: map[string]string{"TRACKNUMBER": c.raw}}
		n, ok := m.TrackNumber()
		if ok != c.ok || (ok && n != c.want) {
			t.Errorf("TrackNumber(%q) = %d, %v, want %d, %v", c.raw, n, ok, c.want, c.ok)
		}
	}
}

func TestMetaTrackNumberAbsentTag(t *testing.T) {
	m := Meta{Tags: map[string]string{}}
	_, ok := m.TrackNumber()
	if ok {
		t.Error("TrackNumber() on a Meta with no TRACKNUMBER tag should report ok=false")
	}
}

func TestMetaAlbumTitle(t *testing.T) {
	m := Meta{Tags: map[string]string{"ALBUM": "Night Drive"}}
	got, ok := m.AlbumTitle()
	if !ok || got != "Night Drive" {
		t.Errorf("AlbumTitle() = %q, %v, want %q, true", got, ok, "Night Drive")
	}

	empty := Meta{Tags: map[string]string{}}
	if _, ok := empty.AlbumTitle(); ok {
		t.Error("AlbumTitle() on a Meta with no ALBUM tag should report ok=false")
	}
}

func TestDefaultTitleFromFilenameStripsExtension(t *testing.T) {
	cases := []struct{ path, want string }{
		{"01 Roygbiv.flac", "01 Roygbiv"},
		{"release/02 Track.mp3", "02 Track"},
		{"noext", "noext"},
	}
	for _, c := range cases {
		if got := DefaultTitleFromFilename(c.path); got != c.want {
			t.Errorf("DefaultTitleFromFilename(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

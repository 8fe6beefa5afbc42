package cache

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/fingerprint"
	"github.com/faircamp-go/faircamp/internal/format"
)

func newTestCache(t *testing.T) (*Cache, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	c, err := Retrieve(fs, "cache", &diag.Logger{})
	if err != nil {
		t.Fatal(err)
	}
	return c, fs
}

func TestParseOptimizationRoundTripsWithString(t *testing.T) {
	cases := map[string]Optimization{
		"delayed":   OptimizationDelayed,
		"immediate": OptimizationImmediate,
		"manual":    OptimizationManual,
		"wipe":      OptimizationWipe,
	}
	for key, want := range cases {
		got, ok := ParseOptimization(key)
		if !ok || got != want {
			t.Errorf("ParseOptimization(%q) = %v, %v, want %v, true", key, got, ok, want)
		}
		if got.String() != key {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), key)
		}
	}
}

func TestParseOptimizationRejectsUnknownKey(t *testing.T) {
	_, ok := ParseOptimization("bogus")
	if ok {
		t.Error("ParseOptimization should reject an unrecognized key")
	}
}

func TestGetOrCreateTranscodesIsIdempotentPerPath(t *testing.T) {
	c, fs := newTestCache(t)
	f, err := fs.Create("track.mp3")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("fake mp3 bytes"))
	f.Close()

	fp, err := fingerprint.New(fs, ".", "track.mp3")
	if err != nil {
		t.Fatal(err)
	}

	h1, ts1, err := c.GetOrCreateTranscodes(fp, "track.mp3", ".mp3")
	if err != nil {
		t.Fatal(err)
	}
	h2, ts2, err := c.GetOrCreateTranscodes(fp, "track.mp3", ".mp3")
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 || ts1 != ts2 {
		t.Error("GetOrCreateTranscodes should return the same handle and set for the same path")
	}
}

func TestGetOrCreateImageIsIdempotentPerPath(t *testing.T) {
	c, fs := newTestCache(t)
	f, err := fs.Create("cover.jpg")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("fake jpeg bytes"))
	f.Close()

	fp, err := fingerprint.New(fs, ".", "cover.jpg")
	if err != nil {
		t.Fatal(err)
	}

	h1, img1 := c.GetOrCreateImage(fp)
	h2, img2 := c.GetOrCreateImage(fp)
	if h1 != h2 || img1 != img2 {
		t.Error("GetOrCreateImage should return the same handle and set for the same path")
	}
}

func TestGetOrCreateArchivesMatchesOnIdentityTuple(t *testing.T) {
	c, _ := newTestCache(t)

	tracks := []fingerprint.Fingerprint{{Path: "01.flac", Size: 10}}
	h1, as1 := c.GetOrCreateArchives(nil, tracks, nil)
	h2, as2 := c.GetOrCreateArchives(nil, tracks, nil)
	if h1 != h2 || as1 != as2 {
		t.Error("GetOrCreateArchives should reuse an ArchiveSet with the same identity tuple")
	}

	other := []fingerprint.Fingerprint{{Path: "02.flac", Size: 20}}
	h3, _ := c.GetOrCreateArchives(nil, other, nil)
	if h3 == h1 {
		t.Error("GetOrCreateArchives should not reuse an ArchiveSet for a different identity tuple")
	}
}

func TestMarkAllStaleThenReportStale(t *testing.T) {
	c, fs := newTestCache(t)
	f, err := fs.Create("track.mp3")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("fake mp3 bytes"))
	f.Close()

	fp, err := fingerprint.New(fs, ".", "track.mp3")
	if err != nil {
		t.Fatal(err)
	}
	_, ts, err := c.GetOrCreateTranscodes(fp, "track.mp3", ".mp3")
	if err != nil {
		t.Fatal(err)
	}
	ts.Set(format.AudioOpus128, &Asset{Filename: "abc.opus", FilesizeBytes: 100})

	c.MarkAllStale(time.Now())

	stats := c.ReportStale()
	if stats.Count != 1 {
		t.Errorf("ReportStale().Count = %d, want 1", stats.Count)
	}
	if stats.Bytes != 100 {
		t.Errorf("ReportStale().Bytes = %d, want 100", stats.Bytes)
	}
}

func TestOptimizeRemovesStaleAssetsAndKeepsFreshOnes(t *testing.T) {
	c, fs := newTestCache(t)
	f, err := fs.Create("track.mp3")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("fake mp3 bytes"))
	f.Close()

	fp, err := fingerprint.New(fs, ".", "track.mp3")
	if err != nil {
		t.Fatal(err)
	}
	_, ts, err := c.GetOrCreateTranscodes(fp, "track.mp3", ".mp3")
	if err != nil {
		t.Fatal(err)
	}
	ts.Set(format.AudioOpus128, &Asset{Filename: "stale.opus", FilesizeBytes: 50})
	ts.Set(format.AudioOpus96, &Asset{Filename: "fresh.opus", FilesizeBytes: 30})

	past := time.Now().Add(-time.Hour)
	ts.Get(format.AudioOpus128).MarkStale(past)

	stats := c.Optimize()
	if stats.Count != 1 {
		t.Errorf("Optimize().Count = %d, want 1", stats.Count)
	}
	if ts.Get(format.AudioOpus128) != nil {
		t.Error("Optimize should have removed the stale opus128 asset")
	}
	if ts.Get(format.AudioOpus96) == nil {
		t.Error("Optimize should not remove a non-stale asset")
	}
}

func TestWipeResetsArenasAndClearsDirectory(t *testing.T) {
	c, fs := newTestCache(t)
	f, err := fs.Create("cache/leftover.bin")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("x"))
	f.Close()

	tracks := []fingerprint.Fingerprint{{Path: "01.flac", Size: 10}}
	c.GetOrCreateArchives(nil, tracks, nil)

	if err := c.Wipe(fs, "cache"); err != nil {
		t.Fatal(err)
	}
	if c.Archives.Len() != 0 {
		t.Errorf("Archives.Len() = %d after Wipe, want 0", c.Archives.Len())
	}
	if _, err := fs.Stat("cache/leftover.bin"); err == nil {
		t.Error("Wipe should have removed leftover.bin")
	}
}

func TestRetrieveRemovesOrphanedAssets(t *testing.T) {
	fs := memfs.New()
	log := &diag.Logger{}

	c1, err := Retrieve(fs, "cache", log)
	if err != nil {
		t.Fatal(err)
	}
	as := c1.Store()
	f, err := fs.Create(as.AssetPath("orphan.opus"))
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("x"))
	f.Close()

	c2, err := Retrieve(fs, "cache", log)
	if err != nil {
		t.Fatal(err)
	}
	_ = c2
	if _, err := fs.Stat(as.AssetPath("orphan.opus")); err == nil {
		t.Error("Retrieve should have removed an asset with no referencing manifest")
	}
}

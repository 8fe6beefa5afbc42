package assetstore

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

func TestOpenWritesVersionMarkerOnFreshDir(t *testing.T) {
	fs := memfs.New()
	_, wiped, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}
	if wiped {
		t.Error("Open on a fresh, empty directory should not report a wipe")
	}
	if !fsExists(fs, "cache/"+versionMarkerName()) {
		t.Error("Open did not write the version marker")
	}
}

func TestOpenIsIdempotentOnceMarkerExists(t *testing.T) {
	fs := memfs.New()
	if _, _, err := Open(fs, "cache"); err != nil {
		t.Fatal(err)
	}

	store, wiped, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}
	if wiped {
		t.Error("a second Open with the marker present should not wipe")
	}
	if store == nil {
		t.Fatal("Open returned a nil store")
	}
}

func TestOpenWipesIncompatibleExistingContent(t *testing.T) {
	fs := memfs.New()
	if err := fs.MkdirAll("cache", 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := fs.Create("cache/stale-asset.bin")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("old"))
	f.Close()

	_, wiped, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}
	if !wiped {
		t.Error("Open on a directory with content but no marker should report a wipe")
	}
	if fsExists(fs, "cache/stale-asset.bin") {
		t.Error("stale asset should have been removed by the wipe")
	}
}

func TestListClassifiesManifestsAndAssets(t *testing.T) {
	fs := memfs.New()
	store, _, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.WriteManifest(ManifestName(KindTranscodes, "abc123"), []byte("gob-data")); err != nil {
		t.Fatal(err)
	}
	f, err := fs.Create(store.AssetPath("abc123.opus"))
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("audio"))
	f.Close()

	listing, err := store.List()
	if err != nil {
		t.Fatal(err)
	}

	if len(listing.Manifests) != 1 {
		t.Fatalf("got %d manifests, want 1", len(listing.Manifests))
	}
	if listing.Manifests[0].Kind != KindTranscodes {
		t.Errorf("manifest kind = %v, want %v", listing.Manifests[0].Kind, KindTranscodes)
	}
	if _, ok := listing.Assets["abc123.opus"]; !ok {
		t.Error("abc123.opus was not classified as an asset")
	}
}

func TestListFlagsIncompatibleSubdirectories(t *testing.T) {
	fs := memfs.New()
	store, _, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.MkdirAll("cache/old-layout", 0o755); err != nil {
		t.Fatal(err)
	}

	listing, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(listing.IncompatibleDirs) != 1 || listing.IncompatibleDirs[0] != "old-layout" {
		t.Errorf("IncompatibleDirs = %v, want [\"old-layout\"]", listing.IncompatibleDirs)
	}
}

func TestWriteAndReadManifestRoundTrip(t *testing.T) {
	fs := memfs.New()
	store, _, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}

	name := ManifestName(KindImages, "deadbeef")
	if err := store.WriteManifest(name, []byte("payload")); err != nil {
		t.Fatal(err)
	}

	got, err := store.ReadManifest(name)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("ReadManifest = %q, want %q", got, "payload")
	}
}

func TestRemoveIsNotAnErrorForMissingFile(t *testing.T) {
	fs := memfs.New()
	store, _, err := Open(fs, "cache")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("never-existed.gob"); err != nil {
		t.Errorf("Remove on a missing file returned an error: %v", err)
	}
}

func fsExists(fs billy.Filesystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

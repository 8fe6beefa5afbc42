package build

import (
	"testing"

	"github.com/faircamp-go/faircamp/internal/catalog"
)

func TestArtistNamesJoinsMultipleArtists(t *testing.T) {
	cat := &catalog.Catalog{
		Artists: []catalog.Artist{
			{Name: "Alice"},
			{Name: "Bob"},
		},
	}
	refs := []catalog.ArtistRef{0, 1}

	got := artistNames(cat, refs)
	if got != "Alice, Bob" {
		t.Fatalf("artistNames() = %q, want %q", got, "Alice, Bob")
	}
}

func TestArtistNamesEmptyFallsBackToUnknown(t *testing.T) {
	cat := &catalog.Catalog{}

	got := artistNames(cat, nil)
	if got != catalog.UnknownArtistName {
		t.Fatalf("artistNames() = %q, want %q", got, catalog.UnknownArtistName)
	}
}

func TestArtistNamesSingleArtist(t *testing.T) {
	cat := &catalog.Catalog{
		Artists: []catalog.Artist{{Name: "Solo"}},
	}

	got := artistNames(cat, []catalog.ArtistRef{0})
	if got != "Solo" {
		t.Fatalf("artistNames() = %q, want %q", got, "Solo")
	}
}

func TestJoinURLWithBase(t *testing.T) {
	got := joinURL("https://example.com", "release-one")
	want := "https://example.com/release-one"
	if got != want {
		t.Fatalf("joinURL() = %q, want %q", got, want)
	}
}

func TestJoinURLStripsTrailingSlashOnBase(t *testing.T) {
	got := joinURL("https://example.com/", "release-one")
	want := "https://example.com/release-one"
	if got != want {
		t.Fatalf("joinURL() = %q, want %q", got, want)
	}
}

func TestJoinURLWithoutBaseIsRootRelative(t *testing.T) {
	got := joinURL("", "release-one")
	want := "/release-one"
	if got != want {
		t.Fatalf("joinURL() = %q, want %q", got, want)
	}
}

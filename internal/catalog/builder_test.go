package catalog

import (
	"testing"

	"github.com/faircamp-go/faircamp/internal/manifest"
)

func TestJoinRel(t *testing.T) {
	if got := joinRel("", "cover.jpg"); got != "cover.jpg" {
		t.Errorf("joinRel(\"\", ...) = %q", got)
	}
	if got := joinRel("release-one", "cover.jpg"); got != "release-one/cover.jpg" {
		t.Errorf("joinRel(dir, ...) = %q", got)
	}
}

func TestPickCoverPrefersExplicitOverride(t *testing.T) {
	images := []string{"back.jpg", "front.jpg", "artwork.png"}
	got := pickCover(images, "front.jpg")
	if got != "front.jpg" {
		t.Errorf("pickCover override = %q, want front.jpg", got)
	}
}

func TestPickCoverFallsBackToCoverPrefix(t *testing.T) {
	images := []string{"back.jpg", "Cover.jpg", "inside.jpg"}
	got := pickCover(images, "")
	if got != "Cover.jpg" {
		t.Errorf("pickCover = %q, want Cover.jpg", got)
	}
}

func TestPickCoverFallsBackToAlphabeticallyFirst(t *testing.T) {
	images := []string{"zzz.jpg", "aaa.jpg", "mmm.jpg"}
	got := pickCover(images, "")
	if got != "aaa.jpg" {
		t.Errorf("pickCover = %q, want aaa.jpg", got)
	}
}

func TestPickCoverNoImages(t *testing.T) {
	if got := pickCover(nil, ""); got != "" {
		t.Errorf("pickCover with no images = %q, want empty", got)
	}
}

func TestMajorityVotePicksHighestCount(t *testing.T) {
	votes := map[string]int{"Anthems": 1, "Night Drive": 3, "Demo": 2}
	if got := majorityVote(votes); got != "Night Drive" {
		t.Errorf("majorityVote = %q, want Night Drive", got)
	}
}

func TestMajorityVoteBreaksTiesAlphabetically(t *testing.T) {
	votes := map[string]int{"Zenith": 2, "Alpha": 2}
	if got := majorityVote(votes); got != "Alpha" {
		t.Errorf("majorityVote tie-break = %q, want Alpha", got)
	}
}

func TestMajorityVoteEmpty(t *testing.T) {
	if got := majorityVote(map[string]int{}); got != "" {
		t.Errorf("majorityVote(empty) = %q, want empty", got)
	}
}

func TestSimilarEnoughExactAndFuzzyMatches(t *testing.T) {
	if !similarEnough("Boards of Canada", "Boards of Canada") {
		t.Error("identical names should match")
	}
	if !similarEnough("BOARDS OF CANADA", "boards of canada") {
		t.Error("case-insensitive exact match should match")
	}
	if similarEnough("Boards of Canada", "Aphex Twin") {
		t.Error("unrelated names should not match")
	}
}

func TestAppendUniqueDeduplicates(t *testing.T) {
	got := appendUnique([]string{"a", "b"}, []string{"b", "c", "a"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("appendUnique = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("appendUnique = %v, want %v", got, want)
		}
	}
}

func TestMergeLocalOverridesOnlySetFields(t *testing.T) {
	base := manifest.Local{TitleOverride: "Base Title", Unlisted: false}
	override := manifest.Local{CoverOverride: "alt.jpg"}

	merged := mergeLocal(base, override)

	if merged.TitleOverride != "Base Title" {
		t.Errorf("TitleOverride should survive unrelated override, got %q", merged.TitleOverride)
	}
	if merged.CoverOverride != "alt.jpg" {
		t.Errorf("CoverOverride = %q, want alt.jpg", merged.CoverOverride)
	}
	if merged.Unlisted {
		t.Error("Unlisted should remain false")
	}
}

func TestMergeLocalUnlistedIsSticky(t *testing.T) {
	base := manifest.Local{Unlisted: true}
	override := manifest.Local{}

	merged := mergeLocal(base, override)

	if !merged.Unlisted {
		t.Error("an unset override field must not clear an already-true base flag")
	}
}

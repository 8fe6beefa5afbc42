package manifest

import (
	"testing"

	"github.com/faircamp-go/faircamp/internal/diag"
	"github.com/faircamp-go/faircamp/internal/eno"
	"github.com/faircamp-go/faircamp/internal/format"
)

func TestCascadeOverridesStreamingQuality(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	parent := DefaultOverrides()
	elements := []eno.Element{
		{Key: "streaming-quality", Kind: eno.KindValue, Value: "flac"},
	}

	got := r.Cascade(parent, elements, "release.eno")
	if got.StreamingQuality != format.AudioFLAC {
		t.Errorf("StreamingQuality = %v, want %v", got.StreamingQuality, format.AudioFLAC)
	}
	if report.Fatal() {
		t.Error("unexpected fatal problem")
	}
}

func TestCascadeInheritsUnsetFields(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	parent := DefaultOverrides()
	parent.Theme = "dark"

	got := r.Cascade(parent, nil, "release.eno")
	if got.Theme != "dark" {
		t.Errorf("Theme = %q, want inherited %q", got.Theme, "dark")
	}
}

func TestCascadeWarnsOnUnrecognizedStreamingQuality(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	elements := []eno.Element{
		{Key: "streaming-quality", Kind: eno.KindValue, Value: "bogus"},
	}
	got := r.Cascade(DefaultOverrides(), elements, "release.eno")

	if got.StreamingQuality != DefaultOverrides().StreamingQuality {
		t.Error("an unrecognized streaming-quality must leave the inherited value unchanged")
	}
	if len(report.Problems()) != 1 {
		t.Fatalf("got %d problems, want 1", len(report.Problems()))
	}
}

func TestCascadeFailsOnWrongKind(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	elements := []eno.Element{
		{Key: "streaming-quality", Kind: eno.KindItems, Items: []string{"flac"}},
	}
	r.Cascade(DefaultOverrides(), elements, "release.eno")

	if !report.Fatal() {
		t.Error("a wrong-kind streaming-quality element should fail, not warn")
	}
}

func TestGlobalsRejectsDuplicateAssignment(t *testing.T) {
	report := diag.NewReport()
	r := New(report)
	g := NewGlobals()

	r.Globals(g, []eno.Element{{Key: "base-url", Kind: eno.KindValue, Value: "https://one.example"}}, "catalog.eno")
	r.Globals(g, []eno.Element{{Key: "base-url", Kind: eno.KindValue, Value: "https://two.example"}}, "sub/catalog.eno")

	if g.BaseURL != "https://one.example" {
		t.Errorf("BaseURL = %q, want the first assignment to win", g.BaseURL)
	}
	if !report.Fatal() {
		t.Error("a duplicate global assignment should be reported as fatal")
	}
}

func TestLocalParsesTitleAndDate(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	elements := []eno.Element{
		{Key: "title", Kind: eno.KindValue, Value: "Night Drive"},
		{Key: "date", Kind: eno.KindValue, Value: "2024-03-05"},
		{Key: "unlisted", Kind: eno.KindEmpty},
	}
	local := r.Local(elements, "release.eno")

	if local.TitleOverride != "Night Drive" {
		t.Errorf("TitleOverride = %q, want %q", local.TitleOverride, "Night Drive")
	}
	if local.ReleaseDate == nil || local.ReleaseDate.Format("2006-01-02") != "2024-03-05" {
		t.Errorf("ReleaseDate = %v, want 2024-03-05", local.ReleaseDate)
	}
	if !local.Unlisted {
		t.Error("Unlisted = false, want true")
	}
}

func TestLocalWarnsOnMalformedDate(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	elements := []eno.Element{{Key: "date", Kind: eno.KindValue, Value: "not-a-date"}}
	local := r.Local(elements, "release.eno")

	if local.ReleaseDate != nil {
		t.Error("ReleaseDate should stay nil for a malformed date")
	}
	if report.Fatal() {
		t.Error("a malformed date is a warning, not a fatal problem")
	}
}

func TestLocalParsesPaymentOptions(t *testing.T) {
	report := diag.NewReport()
	r := New(report)

	cases := []struct {
		value string
		kind  PaymentKind
	}{
		{"free", PaymentFree},
		{"paid:5", PaymentPaid},
		{"name-your-price:1.5", PaymentNameYourPrice},
	}
	for _, c := range cases {
		elements := []eno.Element{{Key: "payment", Kind: eno.KindValue, Value: c.value}}
		local := r.Local(elements, "track.eno")
		if local.Payment == nil {
			t.Fatalf("payment %q: Payment is nil", c.value)
		}
		if local.Payment.Kind != c.kind {
			t.Errorf("payment %q: Kind = %v, want %v", c.value, local.Payment.Kind, c.kind)
		}
	}
}

func TestKnownKeyRecognizesEveryRoutedKey(t *testing.T) {
	for _, key := range []string{
		"base-url", "language", "favicon", "cache-optimization", "no-signature",
		"url-salt", "rotate-urls", "download-formats", "streaming-quality",
		"theme", "tag-rewrite", "release-artists", "track-artists",
		"title", "date", "unlisted", "payment", "downloads", "aliases",
		"text", "cover", "permalink",
	} {
		if !KnownKey(key) {
			t.Errorf("KnownKey(%q) = false, want true", key)
		}
	}
	if KnownKey("not-a-real-key") {
		t.Error("KnownKey(\"not-a-real-key\") = true, want false")
	}
}

package catalog

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"Déjà Vu", "deja-vu"},
		{"  Spaces   Everywhere  ", "spaces-everywhere"},
		{"Über-Cool_Mix!!", "uber-cool-mix"},
		{"Καλημέρα", "καλημερα"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGeneratePermalinkIsSlugified(t *testing.T) {
	p := GeneratePermalink("Ésper  Nuit")
	if p.Slug != "esper-nuit" {
		t.Errorf("Slug = %q, want %q", p.Slug, "esper-nuit")
	}
	if !p.Generated {
		t.Error("Generated should be true")
	}
}

func TestNewExplicitPermalinkRejectsNonSlug(t *testing.T) {
	_, err := NewExplicitPermalink("Not A Slug")
	if err == nil {
		t.Fatal("expected an error for a non-slug permalink")
	}
}

func TestNewExplicitPermalinkAcceptsSlug(t *testing.T) {
	p, err := NewExplicitPermalink("already-a-slug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Generated {
		t.Error("an explicit permalink must not be marked Generated")
	}
	if p.Slug != "already-a-slug" {
		t.Errorf("Slug = %q", p.Slug)
	}
}

func TestRegistryClaimDetectsCollisionsWithinScope(t *testing.T) {
	r := NewRegistry()

	if !r.Claim(ScopeRelease, "echoes") {
		t.Fatal("first claim should succeed")
	}
	if r.Claim(ScopeRelease, "echoes") {
		t.Fatal("second claim of the same slug in the same scope should fail")
	}
}

func TestRegistryScopesAreIndependent(t *testing.T) {
	r := NewRegistry()

	if !r.Claim(ScopeArtist, "echoes") {
		t.Fatal("claiming in ScopeArtist should succeed")
	}
	if !r.Claim(ScopeRelease, "echoes") {
		t.Fatal("the same slug in a different scope must not collide")
	}
}

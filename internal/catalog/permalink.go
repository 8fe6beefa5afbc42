package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Permalink is a URL-safe slug identifying an Artist or a Release. Two
// permalinks in the same Scope must never collide; Registry enforces that.
type Permalink struct {
	Slug      string
	Generated bool
}

// Scope distinguishes the two permalink namespaces a catalog maintains:
// artist slugs and release slugs never collide with one another.
type Scope int

const (
	ScopeArtist Scope = iota
	ScopeRelease
)

var diacriticStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a URL-safe slug from arbitrary text: Unicode text is
// NFKD-decomposed, combining marks (accents) are stripped, the result is
// lowercased, and any run of characters that isn't a letter or digit
// (hyphens included) collapses to a single hyphen. Leading/trailing hyphens
// are trimmed.
func Slugify(text string) string {
	stripped, _, err := transform.String(diacriticStripper, text)
	if err != nil {
		stripped = text
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	lastHyphen := true // suppresses a leading hyphen
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// GeneratePermalink derives a Permalink from arbitrary title text.
func GeneratePermalink(title string) Permalink {
	return Permalink{Slug: Slugify(title), Generated: true}
}

// NewExplicitPermalink validates a user-supplied slug: it must already be
// in slug form, or New returns an error naming the slugified alternative.
func NewExplicitPermalink(slug string) (Permalink, error) {
	slugified := Slugify(slug)
	if slug != slugified {
		return Permalink{}, fmt.Errorf("%q is not a valid permalink, an allowed version would be %q", slug, slugified)
	}
	return Permalink{Slug: slug, Generated: false}, nil
}

// Registry tracks assigned permalinks per Scope: a permalink collision
// within one scope is a hard error.
type Registry struct {
	slugs map[Scope]map[string]bool
}

// NewRegistry returns an empty permalink Registry.
func NewRegistry() *Registry {
	return &Registry{slugs: map[Scope]map[string]bool{}}
}

// Claim registers slug within scope, returning false if it was already
// taken (the caller reports this as a fatal collision).
func (r *Registry) Claim(scope Scope, slug string) bool {
	set, ok := r.slugs[scope]
	if !ok {
		set = map[string]bool{}
		r.slugs[scope] = set
	}
	if set[slug] {
		return false
	}
	set[slug] = true
	return true
}

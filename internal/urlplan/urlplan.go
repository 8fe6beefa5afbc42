// Package urlplan derives the stable hash segment woven into every
// download/streaming URL faircamp emits, so content can't be enumerated by
// guessing a sequential path, while an unchanged build re-emits identical
// URLs. It reuses internal/fingerprint/hash's registered-algorithm
// indirection rather than introducing a second hash dependency.
package urlplan

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/faircamp-go/faircamp/internal/fingerprint/hash"
)

// Policy selects how the per-site salt that feeds every URL hash is
// chosen.
type Policy int

const (
	// Freeze uses a user-provided salt verbatim; URLs only change when the
	// user changes the salt.
	Freeze Policy = iota
	// Rotate mints a fresh random salt on every build; URLs change every
	// build.
	Rotate
)

// Planner derives URL hash segments for one build, holding the salt
// resolved once at the start of the build.
type Planner struct {
	salt string
}

// NewPlanner resolves a Planner from the catalog's URL salt configuration.
// Under Rotate, configuredSalt is ignored and a fresh salt is minted.
func NewPlanner(policy Policy, configuredSalt string) (*Planner, error) {
	if policy == Rotate {
		salt, err := randomSalt()
		if err != nil {
			return nil, fmt.Errorf("urlplan: minting rotate salt: %w", err)
		}
		return &Planner{salt: salt}, nil
	}
	return &Planner{salt: configuredSalt}, nil
}

func randomSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Segment derives the URL-safe hash segment for one asset: the release
// permalink slug, the format directory name, and the filename, salted by
// the planner's resolved salt. The digest is truncated to 64 bits and
// encoded as URL-safe base64, giving a short, stable, collision-resistant
// path component.
func (p *Planner) Segment(releaseSlug, formatDir, filename string) string {
	digestHex := hash.SumStrings(p.salt, releaseSlug, formatDir, filename)

	raw, err := hex.DecodeString(digestHex)
	if err != nil || len(raw) < 8 {
		// The registered hash algorithm always yields a digest at least 8
		// bytes wide; this path only guards a future algorithm swap.
		raw = []byte(digestHex + "00000000")
	}

	return base64.RawURLEncoding.EncodeToString(raw[:8])
}

// Package hash provides the content-hash algorithm used by fingerprints,
// the asset store's manifest filenames and the URL planner. The
// registered-algorithm indirection mirrors distribution's digest package
// (digest.NewDigest takes the algorithm name and a hash.Hash rather than
// hardcoding one), so tests can install a deterministic stub without
// touching callers, and production can use sha1cd for collision detection.
package hash

import (
	"encoding/hex"
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"
)

// algo is the currently registered hash constructor. sha1cd's collision
// detection is irrelevant to us, but it is the one SHA-1 implementation
// the example pack wires up, and using it costs nothing over crypto/sha1.
var algo = sha1cd.New

// Register overrides the hash constructor used by Sum/SumReader. Tests use
// this to install a fast, deterministic stand-in.
func Register(f func() hash.Hash) {
	algo = f
}

// Sum returns the lowercase hex digest of data.
func Sum(data []byte) string {
	h := algo()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SumReader returns the lowercase hex digest of everything read from r.
func SumReader(r io.Reader) (string, error) {
	h := algo()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumStrings hashes the UTF-8 bytes of each input in order, as a single
// digest. Used to derive a manifest filename from an ordered tuple of
// fingerprints.
func SumStrings(parts ...string) string {
	h := algo()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Package fingerprint implements stable source-file identity: a Fingerprint
// ties a cache entry to a path, size and modification time relative to the
// catalog root, so the catalog directory can be moved without invalidating
// the cache.
package fingerprint

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"

	fphash "github.com/faircamp-go/faircamp/internal/fingerprint/hash"
)

// ErrSourceMissing is returned by New when the referenced file cannot be
// stat'd.
var ErrSourceMissing = errors.New("fingerprint: source file is missing")

// Fingerprint is the stable identity of one source file. Equality (used for
// cache lookups) compares every field that is present; Hash is reserved and
// optional.
type Fingerprint struct {
	// Path is relative to the catalog root, forward-slash separated.
	Path    string
	Size    int64
	ModTime time.Time
	Hash    string
}

// New stats relative to catalogRoot on fs and builds its Fingerprint.
// The content hash is left empty; it is only computed on demand via
// WithContentHash, since hashing every file on every build would defeat
// the purpose of a cheap fingerprint.
func New(fs billy.Filesystem, catalogRoot, relativePath string) (Fingerprint, error) {
	full := filepath.Join(catalogRoot, relativePath)
	info, err := fs.Stat(full)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s: %v", ErrSourceMissing, relativePath, err)
	}

	return Fingerprint{
		Path:    toSlash(relativePath),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// WithContentHash returns a copy of fp with its Hash field computed from
// the file's content, using the registered hash algorithm in the
// fingerprint/hash subpackage.
func WithContentHash(fs billy.Filesystem, catalogRoot string, fp Fingerprint) (Fingerprint, error) {
	full := filepath.Join(catalogRoot, fp.Path)
	f, err := fs.Open(full)
	if err != nil {
		return fp, fmt.Errorf("%w: %s: %v", ErrSourceMissing, fp.Path, err)
	}
	defer f.Close()

	sum, err := fphash.SumReader(f)
	if err != nil {
		return fp, fmt.Errorf("fingerprint: hashing %s: %w", fp.Path, err)
	}

	out := fp
	out.Hash = sum
	return out, nil
}

// Equal compares every field that is present on both sides. If either side
// has an empty Hash, the hash is not compared since it is optional.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	if fp.Path != other.Path || fp.Size != other.Size || !fp.ModTime.Equal(other.ModTime) {
		return false
	}
	if fp.Hash != "" && other.Hash != "" && fp.Hash != other.Hash {
		return false
	}
	return true
}

func toSlash(p string) string {
	return filepath.ToSlash(p)
}

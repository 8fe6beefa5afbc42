// Package fsx wraps go-billy filesystems with the small set of operations
// faircamp needs: directory walking with hidden-file/symlink classification,
// atomic manifest writes, and copy-or-hardlink emit. go-billy gives us one
// osfs.Filesystem implementation in production and an in-memory one in
// tests, the same role distribution's storagedriver.StorageDriver interface
// plays for the registry: callers talk to GetContent/PutContent/Stat
// instead of a concrete filesystem/s3/azure backend.
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// ErrSourceMissing is returned when a referenced source file no longer
// exists on disk.
var ErrSourceMissing = errors.New("fsx: source file missing")

// New returns an OS-backed filesystem rooted at dir, creating dir if it
// does not already exist.
func New(dir string) (billy.Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fsx: creating %s: %w", dir, err)
	}
	return osfs.New(dir), nil
}

// EntryKind classifies one directory entry during a catalog or cache walk.
type EntryKind int

const (
	KindDir EntryKind = iota
	KindHidden
	KindSymlink
	KindFile
)

// Entry is one classified directory entry, returned in deterministic
// (alphabetical) order by ListDir.
type Entry struct {
	Name string
	Kind EntryKind
}

// ListDir lists the immediate children of dir on fs, classified and sorted
// by name. Hidden (dot-prefixed) entries and symlinks are reported as such
// rather than silently skipped, so callers can log that a symlink was
// skipped instead of pretending it never existed.
func ListDir(fs billy.Filesystem, dir string) ([]Entry, error) {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("fsx: reading dir %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		kind := KindFile
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			kind = KindSymlink
		case strings.HasPrefix(info.Name(), "."):
			kind = KindHidden
		case info.IsDir():
			kind = KindDir
		}
		entries = append(entries, Entry{Name: info.Name(), Kind: kind})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// AtomicWriteFile writes data to path by first writing to a sibling temp
// file and renaming it into place, so a crash mid-write never leaves a
// corrupt manifest in the cache.
func AtomicWriteFile(fs billy.Filesystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := fs.TempFile(dir, ".tmp-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("fsx: creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("fsx: writing temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("fsx: closing temp file for %s: %w", path, err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("fsx: renaming temp file into %s: %w", path, err)
	}
	return nil
}

// EnsureEmptyDir removes dir (if present) and recreates it empty. Used for
// the "wipe" cache optimization policy and for the output directory, which
// is always deleted and recreated at emit start.
func EnsureEmptyDir(fs billy.Filesystem, dir string) error {
	if err := fs.Remove(dir); err != nil && !os.IsNotExist(err) {
		if err := removeAll(fs, dir); err != nil {
			return fmt.Errorf("fsx: clearing %s: %w", dir, err)
		}
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsx: recreating %s: %w", dir, err)
	}
	return nil
}

func removeAll(fs billy.Filesystem, dir string) error {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, info := range infos {
		child := filepath.Join(dir, info.Name())
		if info.IsDir() {
			if err := removeAll(fs, child); err != nil {
				return err
			}
		} else if err := fs.Remove(child); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return fs.Remove(dir)
}

// CopyOrLink places src (read from srcFS) at dst (on dstFS), preferring a
// hardlink when both paths live on a real OS filesystem and the link
// succeeds, falling back to a full copy otherwise.
func CopyOrLink(srcFS, dstFS billy.Filesystem, src, dst string) error {
	if err := dstFS.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("fsx: creating parent dir for %s: %w", dst, err)
	}

	if srcOS, ok := underlyingOSRoot(srcFS); ok {
		if dstOS, ok := underlyingOSRoot(dstFS); ok {
			absSrc := filepath.Join(srcOS, src)
			absDst := filepath.Join(dstOS, dst)
			_ = os.Remove(absDst)
			if err := os.Link(absSrc, absDst); err == nil {
				return nil
			}
		}
	}

	in, err := srcFS.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceMissing, src, err)
	}
	defer in.Close()

	out, err := dstFS.Create(dst)
	if err != nil {
		return fmt.Errorf("fsx: creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("fsx: copying %s to %s: %w", src, dst, err)
	}
	return nil
}

// osRooter is implemented by go-billy's osfs.Filesystem.
type osRooter interface {
	Root() string
}

func underlyingOSRoot(fs billy.Filesystem) (string, bool) {
	if r, ok := fs.(osRooter); ok {
		return r.Root(), true
	}
	return "", false
}

// Exists reports whether path exists on fs.
func Exists(fs billy.Filesystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

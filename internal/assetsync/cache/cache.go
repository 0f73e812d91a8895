// Package cache maps asset names to files in a flat cache directory and
// decides whether a cached copy can be reused.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/digest"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
	"github.com/open-edge-platform/asset-sync/internal/config"
)

// Status is the outcome of a cache lookup.
type Status int

const (
	Miss Status = iota
	Hit
)

func (s Status) String() string {
	if s == Hit {
		return "hit"
	}
	return "miss"
}

// Lookup reasons.
const (
	ReasonAbsent         = "absent"
	ReasonPresent        = "present"
	ReasonDigestMatch    = "digest-match"
	ReasonDigestMismatch = "digest-mismatch"
)

// Lookup describes where an asset is cached and whether that copy is usable.
type Lookup struct {
	Status Status
	Path   string
	Reason string
	// Actual is the digest computed for the cached file, when one was computed.
	Actual string
}

// Entry is one file found in the cache directory.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a flat directory holding one file per asset name.
type Store struct {
	root string

	// digestFile is swapped in tests to count digest computations.
	digestFile func(path string) (string, error)
}

// NewStore returns a store rooted at root. The directory is created by Ensure.
func NewStore(root string) *Store {
	return &Store{root: root, digestFile: digest.File}
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// Ensure creates the cache directory if needed.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return &errdefs.IOError{Op: "create cache directory", Path: s.root, Err: err}
	}
	return nil
}

// Path returns the cache file for an asset name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, Sanitize(name))
}

// Resolve decides whether the cached copy of entry can be used. An entry
// without a declared digest is valid as soon as its file exists and is never
// re-verified.
func (s *Store) Resolve(entry config.AssetEntry) (Lookup, error) {
	path := s.Path(entry.Name)

	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Lookup{Status: Miss, Path: path, Reason: ReasonAbsent}, nil
	}
	if err != nil {
		return Lookup{Status: Miss, Path: path}, &errdefs.IOError{Op: "stat cache file", Path: path, Err: err}
	}
	if !st.Mode().IsRegular() {
		return Lookup{Status: Miss, Path: path}, &errdefs.IOError{Op: "stat cache file", Path: path, Err: fmt.Errorf("not a regular file")}
	}

	if !entry.HasDigest() {
		return Lookup{Status: Hit, Path: path, Reason: ReasonPresent}, nil
	}

	actual, err := s.digestFile(path)
	if err != nil {
		return Lookup{Status: Miss, Path: path}, err
	}
	if digest.Equal(actual, entry.ExpectedDigest) {
		return Lookup{Status: Hit, Path: path, Reason: ReasonDigestMatch, Actual: actual}, nil
	}
	return Lookup{Status: Miss, Path: path, Reason: ReasonDigestMismatch, Actual: actual}, nil
}

// Remove deletes the cached file for name. A missing file is not an error.
func (s *Store) Remove(name string) error {
	path := s.Path(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &errdefs.IOError{Op: "remove cache file", Path: path, Err: err}
	}
	return nil
}

// List returns the regular files in the cache directory sorted by name.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &errdefs.IOError{Op: "read cache directory", Path: s.root, Err: err}
	}

	var out []Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: de.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clear removes every cached file and returns how many were removed.
func (s *Store) Clear() (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		path := filepath.Join(s.root, e.Name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, &errdefs.IOError{Op: "remove cache file", Path: path, Err: err}
		}
		removed++
	}
	return removed, nil
}

// LockPath is the advisory lock file guarding the cache. It sits next to the
// cache directory so the directory itself only ever holds asset files.
func (s *Store) LockPath() string {
	return strings.TrimRight(s.root, string(filepath.Separator)) + ".lock"
}

// Lock takes the inter-process cache lock, retrying until ctx is done. The
// returned function releases it.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	lockPath := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, &errdefs.IOError{Op: "create lock directory", Path: filepath.Dir(lockPath), Err: err}
	}

	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring cache lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquiring cache lock %s: held by another process", lockPath)
	}
	return fileLock.Unlock, nil
}

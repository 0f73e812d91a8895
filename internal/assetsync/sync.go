// Package assetsync keeps a local set of asset files in line with a remote
// source: each asset is served from the local cache when valid, otherwise
// fetched, verified against its declared digest and installed.
package assetsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/cache"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/digest"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/manifest"
	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// Fetcher downloads a remote file to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, remoteURL, destPath string) (int64, error)
}

// Installer places a cached file at its target path and returns where it
// ended up.
type Installer interface {
	Install(cachedPath, targetPath string) (string, error)
}

// ManifestSource yields the remote asset list, if there is a usable one.
type ManifestSource interface {
	Resolve(ctx context.Context) (*config.ManifestInfo, bool)
}

// Options wires a Synchronizer.
type Options struct {
	Cache     *cache.Store
	Fetcher   Fetcher
	Installer Installer
	// Manifest is optional; nil keeps the static list.
	Manifest ManifestSource
	// URLFor maps an asset's remote path to the URL it is fetched from.
	URLFor func(remotePath string) (string, error)
	// Digest hashes freshly fetched files. Defaults to digest.File.
	Digest func(path string) (string, error)
}

// Synchronizer runs asset synchronization. Runs are strictly sequential:
// one asset at a time, in list order.
type Synchronizer struct {
	opts  Options
	ready atomic.Bool
}

// New returns a Synchronizer. Cache, Fetcher, Installer and URLFor are required.
func New(opts Options) (*Synchronizer, error) {
	switch {
	case opts.Cache == nil:
		return nil, fmt.Errorf("assetsync: cache store is required")
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("assetsync: fetcher is required")
	case opts.Installer == nil:
		return nil, fmt.Errorf("assetsync: installer is required")
	case opts.URLFor == nil:
		return nil, fmt.Errorf("assetsync: URL builder is required")
	}
	if opts.Digest == nil {
		opts.Digest = digest.File
	}
	return &Synchronizer{opts: opts}, nil
}

// Ready reports whether a run has completed.
func (s *Synchronizer) Ready() bool {
	return s.ready.Load()
}

// WarnIfNotReady logs a warning when consumer reads assets before any run
// has completed. It returns Ready(). It is meant for programs that embed a
// Synchronizer and load assets while Run may still be going; the asset-sync
// CLI finishes Run before anything reads the installed files, so it never
// needs it.
func (s *Synchronizer) WarnIfNotReady(consumer string) bool {
	if s.Ready() {
		return true
	}
	logger.Logger().Warnf("%s is reading assets before synchronization completed; files may be missing or stale", consumer)
	return false
}

// Run resolves the asset list, remote manifest first when one is configured,
// and synchronizes it. It blocks until every asset has succeeded or failed.
func (s *Synchronizer) Run(ctx context.Context, static []config.AssetEntry) *Results {
	results := newResults()
	log := logger.Logger().With("run", results.RunID)

	entries := static
	if s.opts.Manifest != nil {
		if info, ok := s.opts.Manifest.Resolve(ctx); ok {
			entries = manifest.Select(static, info)
			results.ManifestVersion = info.Version
			results.UsedManifest = true
			log.Infof("Using remote manifest %s with %d assets", info.Version, len(entries))
		} else {
			log.Infof("Using configured asset list (%d assets)", len(static))
		}
	}

	s.syncAll(ctx, log, entries, results)
	return results
}

// SyncAll synchronizes entries in order. Failures are recorded per asset and
// never stop the run.
func (s *Synchronizer) SyncAll(ctx context.Context, entries []config.AssetEntry) *Results {
	results := newResults()
	s.syncAll(ctx, logger.Logger().With("run", results.RunID), entries, results)
	return results
}

func newResults() *Results {
	return &Results{RunID: uuid.NewString()}
}

func (s *Synchronizer) syncAll(ctx context.Context, log *zap.SugaredLogger, entries []config.AssetEntry, results *Results) {
	start := time.Now()
	log.Infof("Synchronizing %d assets into %s", len(entries), s.opts.Cache.Root())

	results.Items = make([]Result, 0, len(entries))
	owners := make(map[string]string, len(entries))
	for _, entry := range entries {
		alog := log.With("asset", entry.Name)
		key := cache.Sanitize(entry.Name)
		if owner, ok := owners[key]; ok && owner != entry.Name {
			err := &errdefs.IOError{Op: "claim cache entry", Path: key, Err: fmt.Errorf("already used by asset %q", owner)}
			alog.Errorw("Asset synchronization failed", "error", err)
			results.Items = append(results.Items, Result{Asset: entry, Source: SourceNone, Err: err})
			continue
		}
		owners[key] = entry.Name

		res := s.syncOne(ctx, alog, entry)
		results.Items = append(results.Items, res)
	}

	s.ready.Store(true)
	log.Infof("Synchronization finished in %s: %d succeeded, %d failed",
		time.Since(start).Round(time.Millisecond), len(results.Succeeded()), len(results.Failed()))
}

func (s *Synchronizer) syncOne(ctx context.Context, log *zap.SugaredLogger, entry config.AssetEntry) (res Result) {
	start := time.Now()
	res = Result{Asset: entry, Source: SourceNone}
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			log.Errorw("Asset synchronization failed", "error", res.Err)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	lookup, err := s.opts.Cache.Resolve(entry)
	if err != nil {
		res.Err = err
		return res
	}
	res.CachePath = lookup.Path

	if lookup.Status == cache.Hit {
		log.Infof("Using cached %s", entry.Name)
		res.Source = SourceCache
	} else {
		n, err := s.fetch(ctx, log, entry, lookup)
		if err != nil {
			res.Err = err
			return res
		}
		res.Source = SourceRemote
		res.Bytes = n
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	target, err := s.opts.Installer.Install(lookup.Path, entry.TargetPath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Target = target
	log.Infof("Installed %s to %s", entry.Name, target)
	return res
}

// fetch downloads a cache miss and verifies it. On any failure the cache
// file is removed so an invalid copy never survives.
func (s *Synchronizer) fetch(ctx context.Context, log *zap.SugaredLogger, entry config.AssetEntry, lookup cache.Lookup) (int64, error) {
	if lookup.Reason == cache.ReasonDigestMismatch {
		log.Infof("Hash mismatch for cached %s (got %s), downloading again", entry.Name, lookup.Actual)
		if err := s.opts.Cache.Remove(entry.Name); err != nil {
			return 0, err
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	remoteURL, err := s.opts.URLFor(entry.RemotePath)
	if err != nil {
		return 0, err
	}
	if err := s.opts.Cache.Ensure(); err != nil {
		return 0, err
	}

	log.Infof("Downloading %s from %s", entry.Name, remoteURL)
	n, err := s.opts.Fetcher.Fetch(ctx, remoteURL, lookup.Path)
	if err != nil {
		s.discard(log, entry.Name)
		return 0, err
	}

	if !entry.HasDigest() {
		return n, nil
	}

	if err := ctx.Err(); err != nil {
		s.discard(log, entry.Name)
		return 0, err
	}
	actual, err := s.opts.Digest(lookup.Path)
	if err != nil {
		s.discard(log, entry.Name)
		return 0, err
	}
	if !digest.Equal(actual, entry.ExpectedDigest) {
		s.discard(log, entry.Name)
		return 0, &errdefs.DigestMismatchError{Name: entry.Name, Expected: entry.ExpectedDigest, Actual: actual}
	}
	log.Infof("Hash verified for %s", entry.Name)
	return n, nil
}

func (s *Synchronizer) discard(log *zap.SugaredLogger, name string) {
	if err := s.opts.Cache.Remove(name); err != nil {
		log.Warnf("Could not remove cache file for %s: %v", name, err)
	}
}

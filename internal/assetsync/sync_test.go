package assetsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/cache"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/digest"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/install"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/manifest"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/transfer"
	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// SHA-256 of "0123456789".
const texDigest = "84d89877f0d4041efb6bf91a16f0248f2fd573e6af05c19f96bedb9f882f7882"

type remote struct {
	mu    sync.Mutex
	files map[string]string
	hits  []string
}

func (r *remote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, "/")
	r.mu.Lock()
	r.hits = append(r.hits, path)
	content, ok := r.files[path]
	r.mu.Unlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Write([]byte(content))
}

func (r *remote) requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.hits...)
}

type fixture struct {
	sync        *Synchronizer
	store       *cache.Store
	installRoot string
	remote      *remote
	url         string
}

func newFixture(t *testing.T, files map[string]string, tweak func(*Options)) *fixture {
	t.Helper()
	rem := &remote{files: files}
	server := httptest.NewServer(rem)
	t.Cleanup(server.Close)

	f := &fixture{
		store:       cache.NewStore(filepath.Join(t.TempDir(), "cache")),
		installRoot: t.TempDir(),
		remote:      rem,
		url:         server.URL,
	}
	opts := Options{
		Cache:     f.store,
		Fetcher:   transfer.NewClient(transfer.Options{UserAgent: "asset-sync-test"}),
		Installer: install.NewInstaller(f.installRoot),
		URLFor: func(remotePath string) (string, error) {
			return server.URL + "/" + remotePath, nil
		},
	}
	if tweak != nil {
		tweak(&opts)
	}

	s, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	f.sync = s
	return f
}

func (f *fixture) installed(t *testing.T, target string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.installRoot, filepath.FromSlash(target)))
	if err != nil {
		t.Fatalf("reading installed %s: %v", target, err)
	}
	return string(b)
}

func (f *fixture) seedCache(t *testing.T, name, content string) {
	t.Helper()
	if err := f.store.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.store.Path(name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	prev := logger.Logger()
	core, logs := observer.New(zap.DebugLevel)
	logger.Init(zap.New(core).Sugar())
	t.Cleanup(func() { logger.Init(prev) })
	return logs
}

func asset(name, remotePath, target, sum string) config.AssetEntry {
	return config.AssetEntry{Name: name, RemotePath: remotePath, TargetPath: target, ExpectedDigest: sum}
}

func TestTexScenario(t *testing.T) {
	var digests []string
	f := newFixture(t, map[string]string{"assets/tex.png": "0123456789"}, func(o *Options) {
		o.Digest = func(path string) (string, error) {
			sum, err := digest.File(path)
			digests = append(digests, sum)
			return sum, err
		}
	})
	entries := []config.AssetEntry{asset("Tex", "assets/tex.png", "Mods/Textures/tex.png", texDigest)}

	results := f.sync.SyncAll(context.Background(), entries)
	if err := results.Err(); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if got := f.remote.requests(); len(got) != 1 {
		t.Fatalf("expected exactly one transfer, got %v", got)
	}
	if len(digests) != 1 || digests[0] != texDigest {
		t.Errorf("expected one digest computation returning %s, got %v", texDigest, digests)
	}

	item := results.Items[0]
	if item.Source != SourceRemote || item.Bytes != 10 {
		t.Errorf("expected 10 bytes from remote, got %s/%d", item.Source, item.Bytes)
	}
	cached, err := os.ReadFile(f.store.Path("Tex"))
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
	if string(cached) != "0123456789" {
		t.Errorf("unexpected cache content %q", cached)
	}
	if got := f.installed(t, "Mods/Textures/tex.png"); got != "0123456789" {
		t.Errorf("unexpected installed content %q", got)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]string{
		"assets/tex.png":          "0123456789",
		"assets/Localization.csv": "key,value\n",
	}, nil)
	entries := []config.AssetEntry{
		asset("Tex", "assets/tex.png", "Mods/tex.png", texDigest),
		asset("LocalizedText", "assets/Localization.csv", "Data/Localization.csv", ""),
	}

	first := f.sync.SyncAll(context.Background(), entries)
	if err := first.Err(); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	before := len(f.remote.requests())

	second := f.sync.SyncAll(context.Background(), entries)
	if err := second.Err(); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if after := len(f.remote.requests()); after != before {
		t.Errorf("second run transferred %d files, expected none", after-before)
	}
	for _, item := range second.Items {
		if item.Source != SourceCache {
			t.Errorf("%s: expected cache source on second run, got %s", item.Asset.Name, item.Source)
		}
	}
	if first.RunID == second.RunID {
		t.Error("each run should get its own id")
	}
	if got := f.installed(t, "Data/Localization.csv"); got != "key,value\n" {
		t.Errorf("unexpected installed content %q", got)
	}
}

func TestStaleCacheIsFetchedOnce(t *testing.T) {
	f := newFixture(t, map[string]string{"assets/tex.png": "0123456789"}, nil)
	f.seedCache(t, "Tex", "stale bytes")

	results := f.sync.SyncAll(context.Background(), []config.AssetEntry{
		asset("Tex", "assets/tex.png", "Mods/tex.png", texDigest),
	})
	if err := results.Err(); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if got := f.remote.requests(); len(got) != 1 {
		t.Errorf("expected exactly one re-fetch, got %v", got)
	}
	if got := f.installed(t, "Mods/tex.png"); got != "0123456789" {
		t.Errorf("expected fresh content installed, got %q", got)
	}
}

func TestRefetchedMismatchLeavesNothing(t *testing.T) {
	f := newFixture(t, map[string]string{"assets/tex.png": "tampered!!"}, nil)
	f.seedCache(t, "Tex", "stale bytes")

	results := f.sync.SyncAll(context.Background(), []config.AssetEntry{
		asset("Tex", "assets/tex.png", "Mods/tex.png", texDigest),
	})

	var mismatch *errdefs.DigestMismatchError
	if !errors.As(results.Items[0].Err, &mismatch) {
		t.Fatalf("expected DigestMismatchError, got %v", results.Items[0].Err)
	}
	if mismatch.Expected != texDigest || mismatch.Actual == texDigest {
		t.Errorf("unexpected mismatch details %+v", mismatch)
	}
	if got := f.remote.requests(); len(got) != 1 {
		t.Errorf("expected a single attempt, got %v", got)
	}
	if _, err := os.Stat(f.store.Path("Tex")); !os.IsNotExist(err) {
		t.Error("cache file should be deleted after a mismatch")
	}
	if _, err := os.Stat(filepath.Join(f.installRoot, "Mods", "tex.png")); !os.IsNotExist(err) {
		t.Error("nothing should be installed after a mismatch")
	}
}

func TestOrderIsPreserved(t *testing.T) {
	f := newFixture(t, map[string]string{"c": "3", "a": "1", "b": "2"}, nil)
	entries := []config.AssetEntry{
		asset("C", "c", "out/c", ""),
		asset("A", "a", "out/a", ""),
		asset("B", "b", "out/b", ""),
	}

	results := f.sync.SyncAll(context.Background(), entries)
	got := f.remote.requests()
	want := []string{"c", "a", "b"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected transfers in order %v, got %v", want, got)
	}
	for i, item := range results.Items {
		if item.Asset.Name != entries[i].Name {
			t.Errorf("result %d: expected %s, got %s", i, entries[i].Name, item.Asset.Name)
		}
	}
}

func TestPartialFailureIsIsolated(t *testing.T) {
	f := newFixture(t, map[string]string{"one": "1", "three": "3"}, nil)
	entries := []config.AssetEntry{
		asset("One", "one", "out/one", ""),
		asset("Two", "two", "out/two", ""),
		asset("Three", "three", "out/three", ""),
	}

	logs := observeLogs(t)
	results := f.sync.SyncAll(context.Background(), entries)

	if len(results.Failed()) != 1 || len(results.Succeeded()) != 2 {
		t.Fatalf("expected 1 failure and 2 successes, got %d/%d", len(results.Failed()), len(results.Succeeded()))
	}
	failed := results.Items[1]
	if !errdefs.IsTransferKind(failed.Err, errdefs.NonSuccessStatus) {
		t.Errorf("expected NonSuccessStatus, got %v", failed.Err)
	}
	if _, err := os.Stat(f.store.Path("Two")); !os.IsNotExist(err) {
		t.Error("failed transfer should leave no cache file")
	}
	if f.installed(t, "out/one") != "1" || f.installed(t, "out/three") != "3" {
		t.Error("first and third assets should be installed")
	}

	var merr *multierror.Error
	if !errors.As(results.Err(), &merr) || len(merr.Errors) != 1 {
		t.Fatalf("expected one aggregated error, got %v", results.Err())
	}

	failures := logs.FilterMessage("Asset synchronization failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected one failure log line, got %d", len(failures))
	}
	if got := failures[0].ContextMap()["asset"]; got != "Two" {
		t.Errorf("expected asset field Two, got %v", got)
	}
	if logs.FilterMessageSnippet("Synchronization finished").Len() != 1 {
		t.Error("expected a completion line despite the failure")
	}
}

func TestNamesSharingCacheKeyAreNotMixed(t *testing.T) {
	f := newFixture(t, map[string]string{"one.txt": "ONE", "two.txt": "TWO"}, nil)
	entries := []config.AssetEntry{
		asset("a/b", "one.txt", "one.txt", ""),
		asset("a:b", "two.txt", "two.txt", ""),
	}

	results := f.sync.SyncAll(context.Background(), entries)

	if !results.Items[0].OK() || f.installed(t, "one.txt") != "ONE" {
		t.Fatalf("first asset should be installed, got %v", results.Items[0].Err)
	}
	second := results.Items[1]
	var ioErr *errdefs.IOError
	if !errors.As(second.Err, &ioErr) {
		t.Fatalf("expected IOError for the second asset, got %v", second.Err)
	}
	if second.Source != SourceNone {
		t.Errorf("second asset should not be served, got source %s", second.Source)
	}
	if _, err := os.Stat(filepath.Join(f.installRoot, "two.txt")); !os.IsNotExist(err) {
		t.Error("second asset must not be installed from the first asset's cache file")
	}
	if got := f.remote.requests(); len(got) != 1 || got[0] != "one.txt" {
		t.Errorf("expected only one.txt to be fetched, got %v", got)
	}
}

func TestPresenceOnlyEntryIsNotRefetched(t *testing.T) {
	f := newFixture(t, map[string]string{"font": "remote"}, nil)
	f.seedCache(t, "CustomFont", "local")

	results := f.sync.SyncAll(context.Background(), []config.AssetEntry{
		asset("CustomFont", "font", "Mods/fonts/font.bundle", ""),
	})
	if err := results.Err(); err != nil {
		t.Fatal(err)
	}
	if got := f.remote.requests(); len(got) != 0 {
		t.Errorf("expected no transfer, got %v", got)
	}
	if got := f.installed(t, "Mods/fonts/font.bundle"); got != "local" {
		t.Errorf("expected cached content installed, got %q", got)
	}
}

func TestManifestFallback(t *testing.T) {
	var f *fixture
	f = newFixture(t, map[string]string{"tex": "0123456789"}, func(o *Options) {
		o.Manifest = lazyManifest(func() string { return f.url + "/version.json" })
	})
	static := []config.AssetEntry{asset("Tex", "tex", "Mods/tex.png", texDigest)}

	logs := observeLogs(t)
	results := f.sync.Run(context.Background(), static)

	if results.UsedManifest {
		t.Error("expected the static list to be used")
	}
	if err := results.Err(); err != nil {
		t.Fatalf("manifest failure must not fail the run: %v", err)
	}
	if len(results.Items) != 1 || results.Items[0].Asset.Name != "Tex" {
		t.Errorf("expected static list unchanged, got %+v", results.Items)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("expected exactly one warning, got %d", n)
	}
}

func TestManifestReplacesStaticList(t *testing.T) {
	var f *fixture
	f = newFixture(t, map[string]string{
		"version.json": `{"version": "7", "assets": [{"name": "Other", "gitHubPath": "other.bin", "targetPath": "o/other.bin"}]}`,
		"other.bin":    "other",
	}, func(o *Options) {
		o.Manifest = lazyManifest(func() string { return f.url + "/version.json" })
	})
	static := []config.AssetEntry{asset("Tex", "tex", "Mods/tex.png", "")}

	results := f.sync.Run(context.Background(), static)
	if !results.UsedManifest || results.ManifestVersion != "7" {
		t.Errorf("expected manifest 7 to be used, got %+v", results)
	}
	if len(results.Items) != 1 || results.Items[0].Asset.Name != "Other" {
		t.Fatalf("expected only the manifest asset, got %+v", results.Items)
	}
	if got := f.installed(t, "o/other.bin"); got != "other" {
		t.Errorf("unexpected installed content %q", got)
	}
}

// lazyManifest builds the resolver on first use so it can point at the
// fixture's own server.
type lazyManifest func() string

func (l lazyManifest) Resolve(ctx context.Context) (*config.ManifestInfo, bool) {
	r := manifest.NewResolver(manifest.Options{
		URL:    l(),
		Getter: transfer.NewClient(transfer.Options{}),
	})
	return r.Resolve(ctx)
}

type installerFunc func(cachedPath, targetPath string) (string, error)

func (f installerFunc) Install(cachedPath, targetPath string) (string, error) {
	return f(cachedPath, targetPath)
}

type fetcherFunc func(ctx context.Context, remoteURL, destPath string) (int64, error)

func (f fetcherFunc) Fetch(ctx context.Context, remoteURL, destPath string) (int64, error) {
	return f(ctx, remoteURL, destPath)
}

func TestCancellationStopsRemainingAssets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, map[string]string{"a": "1", "b": "2", "c": "3"}, func(o *Options) {
		inner := o.Installer
		o.Installer = installerFunc(func(cachedPath, targetPath string) (string, error) {
			defer cancel()
			return inner.Install(cachedPath, targetPath)
		})
	})
	entries := []config.AssetEntry{
		asset("A", "a", "out/a", ""),
		asset("B", "b", "out/b", ""),
		asset("C", "c", "out/c", ""),
	}

	results := f.sync.SyncAll(ctx, entries)
	if !results.Items[0].OK() {
		t.Fatalf("first asset should finish before cancellation: %v", results.Items[0].Err)
	}
	for _, item := range results.Items[1:] {
		if !errors.Is(item.Err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", item.Asset.Name, item.Err)
		}
	}
	if got := f.remote.requests(); len(got) != 1 {
		t.Errorf("expected no transfers after cancellation, got %v", got)
	}
	if !f.sync.Ready() {
		t.Error("a cancelled run still completes")
	}
}

func TestFailedFetchRemovesPartialFile(t *testing.T) {
	f := newFixture(t, nil, func(o *Options) {
		o.Fetcher = fetcherFunc(func(_ context.Context, remoteURL, destPath string) (int64, error) {
			os.WriteFile(destPath, []byte("partial"), 0644)
			return 0, &errdefs.TransferError{Kind: errdefs.Timeout, URL: remoteURL}
		})
	})

	results := f.sync.SyncAll(context.Background(), []config.AssetEntry{asset("Big", "big", "out/big", "")})
	if !errdefs.IsTransferKind(results.Items[0].Err, errdefs.Timeout) {
		t.Fatalf("expected Timeout, got %v", results.Items[0].Err)
	}
	if _, err := os.Stat(f.store.Path("Big")); !os.IsNotExist(err) {
		t.Error("partial cache file should be removed")
	}
}

func TestInstallFailureIsReportedPerAsset(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "1", "b": "2"}, func(o *Options) {
		inner := o.Installer
		o.Installer = installerFunc(func(cachedPath, targetPath string) (string, error) {
			if targetPath == "out/a" {
				return "", &errdefs.IOError{Op: "write target", Path: targetPath, Err: os.ErrPermission}
			}
			return inner.Install(cachedPath, targetPath)
		})
	})

	results := f.sync.SyncAll(context.Background(), []config.AssetEntry{
		asset("A", "a", "out/a", ""),
		asset("B", "b", "out/b", ""),
	})

	var ioErr *errdefs.IOError
	if !errors.As(results.Items[0].Err, &ioErr) {
		t.Fatalf("expected IOError for A, got %v", results.Items[0].Err)
	}
	if !results.Items[1].OK() {
		t.Errorf("B should still be installed: %v", results.Items[1].Err)
	}
	if _, err := os.Stat(f.store.Path("A")); err != nil {
		t.Error("a verified cache file survives an install failure")
	}
}

func TestFetchedFilesAreVerifiedOnce(t *testing.T) {
	calls := 0
	f := newFixture(t, map[string]string{"tex": "0123456789", "font": "x"}, func(o *Options) {
		o.Digest = func(path string) (string, error) {
			calls++
			return texDigest, nil
		}
	})

	results := f.sync.SyncAll(context.Background(), []config.AssetEntry{
		asset("Tex", "tex", "Mods/tex.png", texDigest),
		asset("Font", "font", "Mods/font", ""),
	})
	if err := results.Err(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected one post-transfer digest, got %d", calls)
	}
}

func TestReadiness(t *testing.T) {
	f := newFixture(t, nil, nil)
	logs := observeLogs(t)

	if f.sync.Ready() {
		t.Fatal("should not be ready before a run")
	}
	if f.sync.WarnIfNotReady("game loader") {
		t.Error("WarnIfNotReady should report false before a run")
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Error("expected a warning for an early consumer")
	}

	f.sync.SyncAll(context.Background(), nil)
	if !f.sync.WarnIfNotReady("game loader") {
		t.Error("expected ready after a run")
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Error("no further warning expected once ready")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	fetcher := transfer.NewClient(transfer.Options{})
	inst := install.NewInstaller(t.TempDir())
	urlFor := func(p string) (string, error) { return p, nil }

	tests := []struct {
		name string
		opts Options
	}{
		{"no cache", Options{Fetcher: fetcher, Installer: inst, URLFor: urlFor}},
		{"no fetcher", Options{Cache: store, Installer: inst, URLFor: urlFor}},
		{"no installer", Options{Cache: store, Fetcher: fetcher, URLFor: urlFor}},
		{"no url builder", Options{Cache: store, Fetcher: fetcher, Installer: inst}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResultsReport(t *testing.T) {
	results := &Results{
		RunID: "run-1",
		Items: []Result{
			{Asset: config.AssetEntry{Name: "A"}, Source: SourceRemote, Bytes: 10, Target: "out/a"},
			{Asset: config.AssetEntry{Name: "B"}, Source: SourceCache, Target: "out/b"},
			{Asset: config.AssetEntry{Name: "C"}, Err: errors.New("boom")},
		},
	}

	report := results.Report()
	if report.RunID != "run-1" {
		t.Errorf("unexpected run id %q", report.RunID)
	}
	if len(report.Fetched.Items) != 1 || report.Fetched.Items[0] != "A (10 bytes)" {
		t.Errorf("unexpected fetched list %v", report.Fetched.Items)
	}
	if len(report.Installed.Items) != 2 {
		t.Errorf("unexpected installed list %v", report.Installed.Items)
	}
	if len(report.Failed.Items) != 1 || report.Failed.Items[0] != "C: boom" {
		t.Errorf("unexpected failed list %v", report.Failed.Items)
	}
	if results.Err() == nil {
		t.Error("expected aggregated error")
	}
	if (&Results{}).Err() != nil {
		t.Error("empty results should have no error")
	}
}

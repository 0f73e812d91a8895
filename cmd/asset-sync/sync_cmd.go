package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/open-edge-platform/asset-sync/internal/assetsync"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/cache"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/install"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/manifest"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/transfer"
	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// Sync command flags
var (
	noManifest   bool
	strictSync   bool
	progressMode string = "auto" // "auto" | "bar" | "log" | "none"
)

// createSyncCommand creates the sync subcommand
func createSyncCommand() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync [flags]",
		Short: "Synchronize all assets",
		Long: `Synchronize every asset: use the cached copy when it is still valid,
otherwise download it, verify its SHA-256 digest when one is declared and
install it under the installation root.

The asset list comes from the remote version manifest when it can be
fetched, and from the configuration otherwise. Failed assets are reported
but do not stop the run; use --strict to exit non-zero when any asset failed.`,
		Args: cobra.NoArgs,
		RunE: executeSync,
	}

	addSyncFlags(syncCmd.Flags())
	return syncCmd
}

func addSyncFlags(f *pflag.FlagSet) {
	f.BoolVar(&noManifest, "no-manifest", false,
		"Ignore the remote manifest and use the configured asset list")
	f.BoolVar(&strictSync, "strict", false,
		"Exit with an error when any asset failed")
	f.StringVar(&progressMode, "progress", "auto",
		"Progress output: auto, bar, log or none")
}

// executeSync handles the sync command logic
func executeSync(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	helpers := config.NewConfigHelpers(cfg)

	cacheDir, err := helpers.CreateCacheDir()
	if err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	installRoot, err := helpers.CreateInstallRoot()
	if err != nil {
		return fmt.Errorf("failed to create install root: %w", err)
	}

	store := cache.NewStore(cacheDir)
	unlock, err := store.Lock(cmd.Context())
	if err != nil {
		return err
	}
	defer unlock()

	reporter, err := newReporter(progressMode, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	client := transfer.NewClient(transfer.Options{
		Timeout:          cfg.Transfer.Timeout,
		UserAgent:        cfg.Transfer.UserAgent,
		ProgressInterval: cfg.Transfer.ProgressInterval,
		Reporter:         reporter,
	})

	opts := assetsync.Options{
		Cache:     store,
		Fetcher:   client,
		Installer: install.NewInstaller(installRoot),
		URLFor:    cfg.RemoteURL,
	}
	if cfg.Manifest.Enabled && !noManifest {
		resolver, err := newManifestResolver(cfg, client)
		if err != nil {
			return err
		}
		opts.Manifest = resolver
	}

	synchronizer, err := assetsync.New(opts)
	if err != nil {
		return err
	}

	log.Infof("Cache: %s, install root: %s", cacheDir, installRoot)
	results := synchronizer.Run(cmd.Context(), cfg.Assets)

	if err := logger.WriteSyncReport(helpers.ReportDir(), results.Report()); err != nil {
		log.Warnf("failed to write sync report: %v", err)
	}
	printSummary(cmd.OutOrStdout(), results)

	if strictSync {
		return results.Err()
	}
	return nil
}

func newManifestResolver(cfg *config.GlobalConfig, getter manifest.Getter) (*manifest.Resolver, error) {
	manifestURL, err := cfg.ManifestURL()
	if err != nil {
		return nil, err
	}
	opts := manifest.Options{URL: manifestURL, Getter: getter}

	if cfg.Manifest.SignatureKey != "" {
		keyring, err := manifest.LoadKeyring(cfg.Manifest.SignatureKey)
		if err != nil {
			return nil, err
		}
		sigURL, err := cfg.SignatureURL()
		if err != nil {
			return nil, err
		}
		opts.Keyring = keyring
		opts.SignatureURL = sigURL
	}
	return manifest.NewResolver(opts), nil
}

func newReporter(mode string, out io.Writer) (transfer.Reporter, error) {
	switch strings.ToLower(mode) {
	case "auto", "":
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return transfer.NewBarReporter(out), nil
		}
		return transfer.LogReporter{}, nil
	case "bar":
		return transfer.NewBarReporter(out), nil
	case "log":
		return transfer.LogReporter{}, nil
	case "none":
		return transfer.NopReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown progress mode %q (expected auto|bar|log|none)", mode)
	}
}

func printSummary(w io.Writer, results *assetsync.Results) {
	if results.UsedManifest {
		fmt.Fprintf(w, "Manifest version: %s\n", results.ManifestVersion)
	}
	for _, item := range results.Items {
		if item.OK() {
			fmt.Fprintf(w, "  ✓ %-24s %-6s %s\n", item.Asset.Name, item.Source, item.Target)
		} else {
			fmt.Fprintf(w, "  ✗ %-24s %v\n", item.Asset.Name, item.Err)
		}
	}
	fmt.Fprintf(w, "%d synchronized, %d failed (run %s)\n",
		len(results.Succeeded()), len(results.Failed()), results.RunID)
}

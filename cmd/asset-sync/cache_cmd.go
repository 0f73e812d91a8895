package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/cache"
	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// createCacheCommand creates the cache subcommand tree
func createCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the asset cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached assets",
		Args:  cobra.NoArgs,
		RunE:  executeCacheList,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached asset",
		Args:  cobra.NoArgs,
		RunE:  executeCacheClear,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE:  executeCachePath,
	})
	return cacheCmd
}

func openStore(cmd *cobra.Command) (*cache.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dir, err := config.NewConfigHelpers(cfg).CacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory: %w", err)
	}
	return cache.NewStore(dir), nil
}

func executeCacheList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	entries, err := store.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "cache %s is empty\n", store.Root())
		return nil
	}
	var total int64
	for _, e := range entries {
		fmt.Fprintf(out, "%-40s %12d  %s\n", e.Name, e.Size, e.ModTime.Format(time.RFC3339))
		total += e.Size
	}
	fmt.Fprintf(out, "%d files, %d bytes\n", len(entries), total)
	return nil
}

func executeCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	unlock, err := store.Lock(cmd.Context())
	if err != nil {
		return err
	}
	defer unlock()

	removed, err := store.Clear()
	if err != nil {
		return err
	}
	logger.Logger().Infof("removed %d cached files from %s", removed, store.Root())
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d files\n", removed)
	return nil
}

func executeCachePath(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), store.Root())
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/bundle"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// createBundleCommand creates the bundle subcommand tree
func createBundleCommand() *cobra.Command {
	bundleCmd := &cobra.Command{
		Use:   "bundle",
		Short: "Export or import the cache as an offline archive",
		Long: `Move the asset cache between machines without network access.
Archives are tar streams compressed with zstd (.tar.zst) or xz (.tar.xz);
the format follows the file extension.`,
	}

	bundleCmd.AddCommand(&cobra.Command{
		Use:   "export ARCHIVE",
		Short: "Write the cache to an archive",
		Args:  cobra.ExactArgs(1),
		RunE:  executeBundleExport,
	})
	bundleCmd.AddCommand(&cobra.Command{
		Use:   "import ARCHIVE",
		Short: "Load an archive into the cache",
		Args:  cobra.ExactArgs(1),
		RunE:  executeBundleImport,
	})
	return bundleCmd
}

func executeBundleExport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	unlock, err := store.Lock(cmd.Context())
	if err != nil {
		return err
	}
	defer unlock()

	n, err := bundle.ExportFile(args[0], store)
	if err != nil {
		return fmt.Errorf("bundle export failed: %w", err)
	}
	logger.Logger().Infof("exported %d cached files to %s", n, args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d files to %s\n", n, args[0])
	return nil
}

func executeBundleImport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	unlock, err := store.Lock(cmd.Context())
	if err != nil {
		return err
	}
	defer unlock()

	n, err := bundle.ImportFile(args[0], store)
	if err != nil {
		return fmt.Errorf("bundle import failed: %w", err)
	}
	logger.Logger().Infof("imported %d files from %s into %s", n, args[0], store.Root())
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d files\n", n)
	return nil
}

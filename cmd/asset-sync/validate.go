package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [flags] CONFIG_FILE",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file against the schema without synchronizing.
The file must be YAML following the asset-sync configuration schema. Environment
overrides (ASSET_SYNC_*) are applied before the cross-field checks.`,
		Args:              cobra.ExactArgs(1),
		RunE:              executeValidate,
		ValidArgsFunction: configFileCompletion,
	}

	return validateCmd
}

// executeValidate handles the validate command logic
func executeValidate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	file := args[0]

	log.Infof("validating config file: %s", file)

	cfg, err := config.Load(file)
	if err != nil {
		return fmt.Errorf("config validation failed: %v", err)
	}

	log.Infof("✓ Config validation successful for %s", file)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source: %s\n", cfg.Source.ContentBaseURL())
	if cfg.Manifest.Enabled {
		manifestURL, _ := cfg.ManifestURL()
		fmt.Fprintf(out, "Manifest: %s\n", manifestURL)
		if cfg.Manifest.SignatureKey != "" {
			fmt.Fprintf(out, "Signature key: %s\n", cfg.Manifest.SignatureKey)
		}
	} else {
		fmt.Fprintln(out, "Manifest: disabled")
	}
	fmt.Fprintf(out, "Assets: %d configured\n", len(cfg.Assets))
	fmt.Fprintf(out, "Log level: %s\n", logger.Level())

	if verbose || config.NewConfigHelpers(cfg).IsDebugMode() {
		for _, a := range cfg.Assets {
			digest := a.ExpectedDigest
			if digest == "" {
				digest = "(presence only)"
			}
			fmt.Fprintf(out, "  - %s: %s -> %s %s\n", a.Name, a.RemotePath, a.TargetPath, digest)
		}
	}

	return nil
}

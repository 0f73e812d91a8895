package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
	"github.com/open-edge-platform/asset-sync/internal/version"
)

// Global flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

func main() {
	if err := logger.Setup(config.DefaultLogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := createRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Logger().Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

// createRootCommand builds the command tree
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "asset-sync",
		Short: "Keep local asset files in line with a remote source",
		Long: `asset-sync downloads the files listed in its configuration (or in the remote
version manifest), verifies them against their declared SHA-256 digests, keeps
them in a local cache and installs them under the installation root.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(createSyncCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createDigestCommand())
	rootCmd.AddCommand(createCacheCommand())
	rootCmd.AddCommand(createBundleCommand())
	rootCmd.AddCommand(createVersionCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

func addGlobalFlags(f *pflag.FlagSet) {
	f.StringVar(&configFile, "config", "",
		"Path to the configuration file (default: embedded configuration)")
	f.StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides configuration)")
	f.BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output (same as --log-level debug)")
}

// resolveRequestedLogLevel returns the level asked for on the command line,
// or "" when the configured level should be used.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if flag := cmd.Flags().Lookup("verbose"); flag != nil && flag.Changed {
		if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
			return "debug"
		}
	}
	return ""
}

// attachLoggingHooks makes every subcommand apply the requested log level
// before it runs, keeping any hook it already had.
func attachLoggingHooks(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		existing := sub.PersistentPreRunE
		sub.PersistentPreRunE = func(c *cobra.Command, args []string) error {
			if err := logger.SetLogLevel(resolveRequestedLogLevel(c)); err != nil {
				return err
			}
			if existing != nil {
				return existing(c, args)
			}
			return nil
		}
		attachLoggingHooks(sub)
	}
}

// loadConfig loads --config (or the embedded default) and applies the
// configured log level unless one was requested on the command line.
func loadConfig(cmd *cobra.Command) (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if resolveRequestedLogLevel(cmd) == "" {
		if err := logger.SetLogLevel(cfg.Logging.Level); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	logger.Logger().Debugf("Loaded configuration, log level %s", logger.Level())
	return cfg, nil
}

// configFileCompletion offers YAML files for config arguments
func configFileCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"yml", "yaml"}, cobra.ShellCompDirectiveFilterFileExt
}

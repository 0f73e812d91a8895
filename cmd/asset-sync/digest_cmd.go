package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/digest"
	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
)

// Digest command flags
var expectDigest string

// createDigestCommand creates the digest subcommand
func createDigestCommand() *cobra.Command {
	digestCmd := &cobra.Command{
		Use:   "digest [flags] FILE...",
		Short: "Print the SHA-256 digest of files",
		Long: `Print the SHA-256 digest of each file in the form used by the
expectedDigest field of configuration and manifest entries.

With --expect, every file must also match the given digest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeDigest,
	}

	addDigestFlags(digestCmd.Flags())
	return digestCmd
}

func addDigestFlags(f *pflag.FlagSet) {
	f.StringVar(&expectDigest, "expect", "",
		"Fail unless each file has this SHA-256 digest")
}

func executeDigest(cmd *cobra.Command, args []string) error {
	if expectDigest != "" && !digest.Valid(expectDigest) {
		return fmt.Errorf("--expect %q is not a SHA-256 hex digest", expectDigest)
	}

	var result *multierror.Error
	for _, path := range args {
		sum, err := digest.File(path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
		if expectDigest != "" && !digest.Equal(sum, expectDigest) {
			result = multierror.Append(result, &errdefs.DigestMismatchError{
				Name:     path,
				Expected: digest.Normalize(expectDigest),
				Actual:   sum,
			})
		}
	}
	return result.ErrorOrNil()
}

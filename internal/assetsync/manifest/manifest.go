// Package manifest resolves the optional remote asset list that overrides
// the configured one.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
	"github.com/open-edge-platform/asset-sync/internal/config"
	"github.com/open-edge-platform/asset-sync/internal/config/validate"
	"github.com/open-edge-platform/asset-sync/internal/utils/logger"
)

// Getter fetches a small remote document.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Resolver.
type Options struct {
	URL    string
	Getter Getter
	// SignatureURL and Keyring enable detached signature checks. Both must be
	// set for verification to happen.
	SignatureURL string
	Keyring      openpgp.EntityList
}

// Resolver fetches and parses the remote manifest.
type Resolver struct {
	opts Options
}

// NewResolver returns a resolver for the manifest at opts.URL.
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve makes one attempt to fetch the manifest. Any failure, or a
// manifest without assets, yields (nil, false) and a warning; it is never
// fatal.
func (r *Resolver) Resolve(ctx context.Context) (*config.ManifestInfo, bool) {
	log := logger.Logger()
	log.Infof("Checking version at: %s", r.opts.URL)

	info, err := r.Fetch(ctx)
	if err != nil {
		log.Warnf("Could not check version: %v", err)
		return nil, false
	}
	if len(info.Assets) == 0 {
		log.Infof("Remote version %q lists no assets, keeping configured list", info.Version)
		return nil, false
	}

	log.Infof("Remote version: %s", info.Version)
	return info, true
}

// Fetch retrieves, verifies and parses the manifest. Errors are ManifestErrors.
func (r *Resolver) Fetch(ctx context.Context) (*config.ManifestInfo, error) {
	data, err := r.opts.Getter.Get(ctx, r.opts.URL)
	if err != nil {
		return nil, &errdefs.ManifestError{Op: "fetch", URL: r.opts.URL, Err: err}
	}

	if r.opts.SignatureURL != "" && len(r.opts.Keyring) > 0 {
		sig, err := r.opts.Getter.Get(ctx, r.opts.SignatureURL)
		if err != nil {
			return nil, &errdefs.ManifestError{Op: "fetch signature", URL: r.opts.SignatureURL, Err: err}
		}
		if err := VerifySignature(r.opts.Keyring, data, sig); err != nil {
			return nil, &errdefs.ManifestError{Op: "verify", URL: r.opts.URL, Err: err}
		}
	}

	info, err := Parse(data)
	if err != nil {
		return nil, &errdefs.ManifestError{Op: "parse", URL: r.opts.URL, Err: err}
	}
	return info, nil
}

// Parse decodes a JSON or YAML manifest, validates it and normalizes its
// asset entries.
func Parse(data []byte) (*config.ManifestInfo, error) {
	jsonData, err := validate.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("malformed manifest: %w", err)
	}
	if err := validate.ValidateManifestJSON(jsonData); err != nil {
		return nil, err
	}

	var info config.ManifestInfo
	if err := json.Unmarshal(jsonData, &info); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	info.Assets = config.NormalizeAssets(info.Assets)
	if err := config.ValidateAssets(info.Assets); err != nil {
		return nil, err
	}
	return &info, nil
}

// Select returns the manifest's assets when it has any, otherwise the static
// list. There is no merging.
func Select(static []config.AssetEntry, info *config.ManifestInfo) []config.AssetEntry {
	if info == nil || len(info.Assets) == 0 {
		return static
	}
	return info.Assets
}

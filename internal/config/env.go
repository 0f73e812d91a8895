package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// configEnv holds raw environment overrides. Empty values leave the file
// configuration untouched.
type configEnv struct {
	Owner            string        `env:"ASSET_SYNC_SOURCE_OWNER"`
	Repo             string        `env:"ASSET_SYNC_SOURCE_REPO"`
	Branch           string        `env:"ASSET_SYNC_SOURCE_BRANCH"`
	BaseURL          string        `env:"ASSET_SYNC_BASE_URL"`
	ManifestEnabled  string        `env:"ASSET_SYNC_MANIFEST_ENABLED"`
	ManifestPath     string        `env:"ASSET_SYNC_MANIFEST_PATH"`
	SignatureKey     string        `env:"ASSET_SYNC_MANIFEST_SIGNATURE_KEY"`
	Timeout          time.Duration `env:"ASSET_SYNC_TRANSFER_TIMEOUT"`
	UserAgent        string        `env:"ASSET_SYNC_USER_AGENT"`
	ProgressInterval int64         `env:"ASSET_SYNC_PROGRESS_INTERVAL"`
	CacheDir         string        `env:"ASSET_SYNC_CACHE_DIR"`
	InstallRoot      string        `env:"ASSET_SYNC_INSTALL_ROOT"`
	ReportDir        string        `env:"ASSET_SYNC_REPORT_DIR"`
	LogLevel         string        `env:"ASSET_SYNC_LOG_LEVEL"`
}

// ApplyEnv overlays ASSET_SYNC_* environment variables onto cfg.
func ApplyEnv(cfg *GlobalConfig) error {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&cfg.Source.Owner, raw.Owner)
	setString(&cfg.Source.Repo, raw.Repo)
	setString(&cfg.Source.Branch, raw.Branch)
	setString(&cfg.Source.BaseURL, raw.BaseURL)
	setString(&cfg.Manifest.Path, raw.ManifestPath)
	setString(&cfg.Manifest.SignatureKey, raw.SignatureKey)
	setString(&cfg.Transfer.UserAgent, raw.UserAgent)
	setString(&cfg.CacheDir, raw.CacheDir)
	setString(&cfg.InstallRoot, raw.InstallRoot)
	setString(&cfg.ReportDir, raw.ReportDir)
	setString(&cfg.Logging.Level, raw.LogLevel)

	if raw.ManifestEnabled != "" {
		enabled, err := strconv.ParseBool(raw.ManifestEnabled)
		if err != nil {
			return fmt.Errorf("parse env ASSET_SYNC_MANIFEST_ENABLED: %w", err)
		}
		cfg.Manifest.Enabled = enabled
	}
	if raw.Timeout > 0 {
		cfg.Transfer.Timeout = raw.Timeout
	}
	if raw.ProgressInterval > 0 {
		cfg.Transfer.ProgressInterval = raw.ProgressInterval
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

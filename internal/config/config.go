// Package config holds the static asset-sync configuration: where assets
// come from, where they are cached and installed, and the asset list itself.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/asset-sync/internal/config/validate"
	"github.com/open-edge-platform/asset-sync/internal/version"
)

//go:embed default.yml
var defaultConfigYAML []byte

const (
	DefaultManifestPath     = "version.json"
	DefaultTransferTimeout  = 5 * time.Minute
	DefaultProgressInterval = 1 << 20
	DefaultReportDir        = "builds"
	DefaultLogLevel         = "info"

	rawContentHost = "https://raw.githubusercontent.com"
)

// GlobalConfig is the complete configuration for a synchronization run.
type GlobalConfig struct {
	Source      SourceConfig   `yaml:"source"`
	Manifest    ManifestConfig `yaml:"manifest"`
	Transfer    TransferConfig `yaml:"transfer"`
	CacheDir    string         `yaml:"cacheDir"`
	InstallRoot string         `yaml:"installRoot"`
	ReportDir   string         `yaml:"reportDir"`
	Logging     LoggingConfig  `yaml:"logging"`
	Assets      []AssetEntry   `yaml:"assets"`
}

// SourceConfig locates the remote content. BaseURL wins over owner/repo/branch.
type SourceConfig struct {
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Branch  string `yaml:"branch"`
	BaseURL string `yaml:"baseURL"`
}

// ManifestConfig controls the remote asset list override.
type ManifestConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	SignatureKey string `yaml:"signatureKey"`
}

// TransferConfig tunes asset downloads.
type TransferConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"userAgent"`
	ProgressInterval int64         `yaml:"progressInterval"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultGlobalConfig returns the configuration used for any field a file
// or the environment leaves unset.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Source: SourceConfig{Branch: "main"},
		Manifest: ManifestConfig{
			Enabled: true,
			Path:    DefaultManifestPath,
		},
		Transfer: TransferConfig{
			Timeout:          DefaultTransferTimeout,
			UserAgent:        version.GetUserAgent(),
			ProgressInterval: DefaultProgressInterval,
		},
		CacheDir:    defaultCacheDir(),
		InstallRoot: ".",
		ReportDir:   DefaultReportDir,
		Logging:     LoggingConfig{Level: DefaultLogLevel},
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		return filepath.Join(".asset-sync", "cache")
	}
	return filepath.Join(base, "asset-sync", "cache")
}

// Load reads the configuration file at path, or the embedded default when
// path is empty, then applies ASSET_SYNC_* environment overrides.
func Load(path string) (*GlobalConfig, error) {
	data := defaultConfigYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		data = b
	}

	cfg, err := Parse(data)
	if err != nil {
		if path == "" {
			path = "embedded default"
		}
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a YAML configuration document.
func Parse(data []byte) (*GlobalConfig, error) {
	if err := validate.ValidateConfigYAML(data); err != nil {
		return nil, err
	}

	cfg := DefaultGlobalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Assets = NormalizeAssets(cfg.Assets)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *GlobalConfig) Validate() error {
	if c.Source.BaseURL == "" && (c.Source.Owner == "" || c.Source.Repo == "" || c.Source.Branch == "") {
		return fmt.Errorf("source: either baseURL or owner, repo and branch must be set")
	}
	if c.Source.BaseURL != "" {
		u, err := url.Parse(c.Source.BaseURL)
		if err != nil {
			return fmt.Errorf("source.baseURL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source.baseURL: unsupported scheme %q", u.Scheme)
		}
	}
	if c.Transfer.Timeout <= 0 {
		return fmt.Errorf("transfer.timeout must be positive")
	}
	if c.Manifest.Enabled && c.Manifest.Path == "" {
		return fmt.Errorf("manifest.path is required when the manifest is enabled")
	}
	return ValidateAssets(c.Assets)
}

// ContentBaseURL is the URL every remote path is resolved against.
func (s SourceConfig) ContentBaseURL() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return fmt.Sprintf("%s/%s/%s/%s", rawContentHost, s.Owner, s.Repo, s.Branch)
}

// RemoteURL resolves a path relative to the content base, escaping each segment.
func (c *GlobalConfig) RemoteURL(remotePath string) (string, error) {
	segments := strings.Split(strings.TrimLeft(remotePath, "/"), "/")
	u, err := url.JoinPath(c.Source.ContentBaseURL(), segments...)
	if err != nil {
		return "", fmt.Errorf("building URL for %s: %w", remotePath, err)
	}
	return u, nil
}

// ManifestURL is the location of the remote manifest.
func (c *GlobalConfig) ManifestURL() (string, error) {
	return c.RemoteURL(c.Manifest.Path)
}

// SignatureURL is the location of the manifest's detached signature.
func (c *GlobalConfig) SignatureURL() (string, error) {
	return c.RemoteURL(c.Manifest.Path + ".asc")
}

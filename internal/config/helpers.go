package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigHelpers resolves the directories a GlobalConfig points at.
type ConfigHelpers struct {
	config *GlobalConfig
}

func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// CacheDir is the absolute cache directory.
func (c *ConfigHelpers) CacheDir() (string, error) {
	return filepath.Abs(c.config.CacheDir)
}

// InstallRoot is the absolute directory target paths are resolved against.
func (c *ConfigHelpers) InstallRoot() (string, error) {
	return filepath.Abs(c.config.InstallRoot)
}

// ReportDir is where run reports are appended.
func (c *ConfigHelpers) ReportDir() string {
	if c.config.ReportDir == "" {
		return DefaultReportDir
	}
	return c.config.ReportDir
}

// IsDebugMode reports whether the configured log level is debug.
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// CreateCacheDir resolves the cache directory and makes sure it exists.
func (c *ConfigHelpers) CreateCacheDir() (string, error) {
	dir, err := c.CacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return dir, ensureDir(dir)
}

// CreateInstallRoot resolves the install root and makes sure it exists.
func (c *ConfigHelpers) CreateInstallRoot() (string, error) {
	dir, err := c.InstallRoot()
	if err != nil {
		return "", fmt.Errorf("resolving install root: %w", err)
	}
	return dir, ensureDir(dir)
}

func ensureDir(dir string) error {
	st, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0755)
	case err != nil:
		return err
	case !st.IsDir():
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return nil
}

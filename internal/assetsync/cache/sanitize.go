package cache

import "github.com/open-edge-platform/asset-sync/internal/config"

// Sanitize returns the file name an asset name is cached under.
func Sanitize(name string) string {
	return config.CacheKey(name)
}

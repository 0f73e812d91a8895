package version

// version is overridden at build time with
// -ldflags "-X github.com/open-edge-platform/asset-sync/internal/version.version=v1.2.3"
var version = "dev"

// GetVersion returns the build version.
func GetVersion() string {
	return version
}

// GetUserAgent returns the User-Agent sent with every remote request.
func GetUserAgent() string {
	return "asset-sync/" + version
}

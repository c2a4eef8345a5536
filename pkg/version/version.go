// Package version provides build version information for k8stag.
// Version values are set at build time via ldflags.
package version

import "os"

// Environment variable for overriding UserAgent
const EnvUserAgent = "K8STAG_USER_AGENT"

// Build-time variables set via ldflags
// Example: go build -ldflags "-X github.com/k8stag/k8stag/pkg/version.Version=1.0.0"
var (
	// Version is the semantic version of k8stag
	Version = "0.1.0"

	// Commit is the git commit SHA
	Commit = "none"

	// BuildDate is the date when the binary was built
	BuildDate = "unknown"

	// Tag is the git tag (if any)
	Tag = "none"
)

// UserAgent returns the User-Agent string sent to the API server.
// It first checks the K8STAG_USER_AGENT environment variable (EnvUserAgent),
// and if not set, returns the default "k8stag/{version}" string.
func UserAgent() string {
	if ua := os.Getenv(EnvUserAgent); ua != "" {
		return ua
	}
	return "k8stag/" + Version
}

// Info returns all version information as a struct
func Info() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		Tag:       Tag,
	}
}

// VersionInfo contains all build version information
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
	Tag       string
}

// This file contains build information and initialization logic.
// It sets up variables for versioning, commit hash, build time and start time.
// Values are injected with -ldflags "-X github.com/nobletooth/ttlcache/pkg/utils.Version=v1.2.3".

package utils

import (
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/mod/semver"
)

// devVersion is reported when the binary wasn't built with a version.
const devVersion = "v0.0.0-dev"

var (
	TestMode   string // Should be true when running tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = devVersion
	} else if !semver.IsValid(Version) {
		slog.Warn("Build version is not a semantic version, falling back to dev.", "version", Version)
		Version = devVersion
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false", "error", err)
		}
	}
}

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartTime)
}

package version

import (
	"sync"

	"github.com/earthboundkid/versioninfo/v2"
)

// Version can be set at build time:
//
//	go build -ldflags "-X github.com/shindakun/loginportal/internal/version.Version=v1.2.0"
var Version string

var (
	version     string
	gitCommit   string
	versionOnce sync.Once
)

// getVersionInfo resolves the version from ldflags, then from the module build info
func getVersionInfo() (string, string) {
	versionOnce.Do(func() {
		version = Version
		if version == "" {
			version = versioninfo.Version
		}
		if version == "" || version == "(devel)" || version == "unknown" {
			version = "dev"
		}

		if rev := versioninfo.Revision; len(rev) >= 7 && rev != "unknown" {
			gitCommit = rev[:7]
		}
	})
	return version, gitCommit
}

// GetVersion returns the version string with git commit if available
func GetVersion() string {
	ver, commit := getVersionInfo()
	if commit != "" && ver != "dev" {
		return ver + "-" + commit
	}
	return ver
}

// GetFullVersion returns version with commit info
func GetFullVersion() string {
	ver, commit := getVersionInfo()
	if commit != "" && ver != "dev" {
		return ver + " (commit: " + commit + ")"
	}
	return ver
}

// Package buildinfo holds version metadata stamped in at link time, e.g.
//
//	go build -ldflags "-X github.com/talkcents/talkcents/internal/buildinfo.Version=v0.3.0"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String describes the build for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

// UserAgent identifies this client to the backend.
func UserAgent() string {
	return "talkcents-cli/" + Version
}

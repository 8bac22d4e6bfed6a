// Package buildinfo carries version metadata stamped in at link time:
//
//	go build -ldflags "-X 'github.com/m3rciful/cpabot/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/m3rciful/cpabot/core/buildinfo.Commit=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/m3rciful/cpabot/core/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)'"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC3339; empty for local builds.
	Date = ""
)

// String renders "Version (Commit, Date)", leaving out unset parts.
func String() string {
	var meta []string
	for _, part := range []string{Commit, Date} {
		if part != "" {
			meta = append(meta, part)
		}
	}
	if len(meta) == 0 {
		return Version
	}
	return Version + " (" + strings.Join(meta, ", ") + ")"
}

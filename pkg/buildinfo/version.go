// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/stanza/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/stanza/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/stanza/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/stanza
package buildinfo

import "fmt"

var (
	Version = "dev"     // Semantic version, e.g. "v1.2.3"
	Commit  = "none"    // Git commit SHA
	Date    = "unknown" // Build timestamp
)

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent identifies stanza to package indexes.
func UserAgent() string {
	return "stanza/" + Version
}

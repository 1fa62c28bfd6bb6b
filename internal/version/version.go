// Package version exposes build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via ldflags
var (
	// Version is the semantic version (e.g., "v1.2.3" or "dev")
	Version = "dev"

	// Commit is the git commit hash
	Commit = "unknown"

	// CommitDate is the git commit timestamp (ISO 8601 format)
	CommitDate = "unknown"
)

// Info returns all version information as a struct
type Info struct {
	Version    string `json:"version" yaml:"version"`
	Commit     string `json:"commit" yaml:"commit"`
	CommitDate string `json:"commit_date" yaml:"commit_date"`
	GoVersion  string `json:"go_version" yaml:"go_version"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		GoVersion:  runtime.Version(),
	}
}

// String renders the one-line form printed by the version command
func (i Info) String() string {
	return fmt.Sprintf("coinview %s (commit %s, %s, %s)", i.Version, shortCommit(i.Commit), i.CommitDate, i.GoVersion)
}

// UserAgent is sent with every upstream request
func UserAgent() string {
	return "coinview/" + Version
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

// Package version reports the krishi build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is set at build time with -ldflags "-X .../internal/version.Commit=<sha>".
var Commit string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version with the commit suffix when one was stamped.
func String() string {
	v := Get()
	if c := strings.TrimSpace(Commit); c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		v += " (" + c + ")"
	}
	return v
}

// Package version exposes build-time version metadata.
package version

// BlockaggVersion is the semantic version string embedded at build time.
var BlockaggVersion = "0.0.0-src"

// Set version at compile time with
// go build -ldflags "-X blockagg/pkg/version.BlockaggVersion=1.0.0" -o blockagg

// For a release build with version and optimization flags:
// go build -ldflags "-s -w -X blockagg/pkg/version.BlockaggVersion=1.0.0" -o blockagg

// Package version holds the build version, set at link time via
// -ldflags "-X github.com/rulesift/rulesift/internal/version.Version=..."
package version

// Version is the current rulesift version
var Version = "dev"

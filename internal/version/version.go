// Package version holds build-time version metadata for the valuascript
// toolchain.
package version

// Version is replaced during the release process by the latest Git tag
// and should not be manually edited.
const Version = "0.0.0-dev"
const VersionWithPrefix = "v" + Version

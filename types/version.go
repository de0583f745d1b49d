// Package types holds values shared by the lifi binary and its packages.
package types //nolint:revive // types is a valid package name

// Version is the lifi release version, reported by `lifi version` and the
// --version flag.
const Version = "0.1.0"

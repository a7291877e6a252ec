// Package updates runs the package-manager update command and reports whether
// it modified the manifest or its lock file.
package updates

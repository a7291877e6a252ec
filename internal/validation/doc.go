// Package validation rejects branch names and directory paths that are unsafe
// to pass to git, the package manager, or the GitHub API.
package validation

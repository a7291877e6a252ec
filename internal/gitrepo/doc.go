// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// RepositoryManager wraps the git primitives the update workflow relies on:
// fetching, probing remote branches, positioning and resetting branches,
// reading scoped status, staging, committing, pushing, and rebasing.
// ParseRemoteURL turns a remote URL into the owner and repository pair used
// by the GitHub API.
package gitrepo

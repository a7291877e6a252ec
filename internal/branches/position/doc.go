// Package position brings a repository checkout to a known head branch state
// before the dependency update mutates it.
package position

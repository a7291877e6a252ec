package githubauth

import (
	"errors"
	"os"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"

	// SourceInput marks a token supplied through the gh-token input.
	SourceInput = "input"

	tokenNotFoundMessageConstant = "GitHub token not provided: set the gh-token input or one of GH_TOKEN, GITHUB_TOKEN, GITHUB_API_TOKEN"
)

// ErrTokenNotFound indicates no token was supplied explicitly or through the environment.
var ErrTokenNotFound = errors.New(tokenNotFoundMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// Token is a resolved credential and the place it came from.
type Token struct {
	Value string
	// Source is SourceInput or the environment variable name.
	Source string
}

// EnvironmentLookup reads a single environment variable.
type EnvironmentLookup func(key string) (string, bool)

// Resolve prefers explicitToken and falls back to the GitHub token environment variables.
func Resolve(explicitToken string, lookupEnvironment EnvironmentLookup) (Token, error) {
	if trimmed := strings.TrimSpace(explicitToken); len(trimmed) > 0 {
		return Token{Value: trimmed, Source: SourceInput}, nil
	}
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	for _, key := range tokenPreference {
		value, exists := lookupEnvironment(key)
		if !exists {
			continue
		}
		if trimmed := strings.TrimSpace(value); len(trimmed) > 0 {
			return Token{Value: trimmed, Source: key}, nil
		}
	}
	return Token{}, ErrTokenNotFound
}

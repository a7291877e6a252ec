// Package githubcli wraps the GitHub CLI for pull request operations.
//
// Requests are sent through `gh api` and `gh pr` using execshell so that
// interactions with GitHub can be stubbed during testing. The "pull request
// already exists" validation failure is surfaced as ErrPullRequestAlreadyExists.
package githubcli

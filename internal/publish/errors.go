package publish

import (
	"errors"
	"fmt"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	pullRequestClientMissingMessageConstant = "pull request client not configured"
	workingDirectoryRequiredMessageConstant = "working directory must be provided"
	changedFilesRequiredMessageConstant     = "no changed files to commit"
	commitIdentityRequiredMessageConstant   = "commit identity name and email must be provided"
	commitMessageRequiredMessageConstant    = "commit message must be provided"
	unknownPushStrategyTemplateConstant     = "unknown push strategy %q (expected %q or %q)"
	pushExhaustedTemplateConstant           = "push of %s to %s failed after %d attempts: %v"
	pullRequestFailureTemplateConstant      = "failed to open pull request %s <- %s: %v"
)

// ErrRepositoryManagerNotConfigured indicates the service was constructed without a repository manager.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// ErrPullRequestClientNotConfigured indicates the service was constructed without a pull request client.
var ErrPullRequestClientNotConfigured = errors.New(pullRequestClientMissingMessageConstant)

// ErrWorkingDirectoryRequired indicates the request carried no working directory.
var ErrWorkingDirectoryRequired = errors.New(workingDirectoryRequiredMessageConstant)

// ErrChangedFilesRequired indicates a commit was requested without changed files.
var ErrChangedFilesRequired = errors.New(changedFilesRequiredMessageConstant)

// ErrCommitIdentityRequired indicates the commit identity was incomplete.
var ErrCommitIdentityRequired = errors.New(commitIdentityRequiredMessageConstant)

// ErrCommitMessageRequired indicates the commit message was empty.
var ErrCommitMessageRequired = errors.New(commitMessageRequiredMessageConstant)

// UnknownPushStrategyError reports an unsupported push strategy name.
type UnknownPushStrategyError struct {
	Value string
}

// Error describes the unsupported strategy.
func (strategyError UnknownPushStrategyError) Error() string {
	return fmt.Sprintf(unknownPushStrategyTemplateConstant, strategyError.Value, PushStrategyForce, PushStrategyRebase)
}

// PushAttemptsExhaustedError reports that every push attempt failed.
type PushAttemptsExhaustedError struct {
	Remote   string
	Branch   string
	Attempts int
	Cause    error
}

// Error describes the final push failure.
func (pushError PushAttemptsExhaustedError) Error() string {
	return fmt.Sprintf(pushExhaustedTemplateConstant, pushError.Branch, pushError.Remote, pushError.Attempts, pushError.Cause)
}

// Unwrap exposes the error of the last attempt.
func (pushError PushAttemptsExhaustedError) Unwrap() error {
	return pushError.Cause
}

// PullRequestError reports a pull request creation failure other than an already open pull request.
type PullRequestError struct {
	Base  string
	Head  string
	Cause error
}

// Error describes the failed request.
func (pullRequestError PullRequestError) Error() string {
	return fmt.Sprintf(pullRequestFailureTemplateConstant, pullRequestError.Base, pullRequestError.Head, pullRequestError.Cause)
}

// Unwrap exposes the client error.
func (pullRequestError PullRequestError) Unwrap() error {
	return pullRequestError.Cause
}

package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/depsupdate/internal/githubcli"
	"github.com/temirov/depsupdate/internal/gitrepo"
)

const (
	gitUserNameConfigKeyConstant           = "user.name"
	gitUserEmailConfigKeyConstant          = "user.email"
	identityFailureTemplateConstant        = "failed to configure commit identity: %w"
	stageFailureTemplateConstant           = "failed to stage %s: %w"
	commitFailureTemplateConstant          = "failed to commit: %w"
	headCommitFailureTemplateConstant      = "failed to resolve committed revision: %w"
	rebaseFetchFailureTemplateConstant     = "failed to fetch %s before rebase: %w"
	rebaseFailureTemplateConstant          = "failed to rebase onto %s: %w"
	changedFilesSeparatorConstant          = ", "
	defaultPushAttemptsConstant            = 3
	pushAttemptFailedMessageConstant       = "Push attempt failed"
	pushSucceededMessageConstant           = "Pushed head branch"
	rebasingBeforeRetryMessageConstant     = "Rebasing onto base branch before retrying push"
	commitCreatedMessageConstant           = "Committed dependency updates"
	pullRequestOpenedMessageConstant       = "Opened pull request"
	pullRequestExistsMessageConstant       = "Pull request already exists for head branch"
	pullRequestLookupFailedMessageConstant = "Unable to look up existing pull request"
	logFieldAttemptConstant                = "attempt"
	logFieldMaximumAttemptsConstant        = "max_attempts"
	logFieldStrategyConstant               = "strategy"
	logFieldRemoteConstant                 = "remote"
	logFieldBranchConstant                 = "branch"
	logFieldBaseReferenceConstant          = "base_reference"
	logFieldCommitConstant                 = "commit"
	logFieldFilesConstant                  = "files"
	logFieldPullRequestNumberConstant      = "pull_request_number"
	logFieldPullRequestURLConstant         = "pull_request_url"
)

// PushStrategy selects how the head branch reaches the remote.
type PushStrategy string

// Supported push strategies.
const (
	PushStrategyForce  PushStrategy = PushStrategy("force")
	PushStrategyRebase PushStrategy = PushStrategy("rebase")
)

// ParsePushStrategy converts a configuration value into a PushStrategy. Empty selects force.
func ParsePushStrategy(value string) (PushStrategy, error) {
	switch PushStrategy(strings.ToLower(strings.TrimSpace(value))) {
	case PushStrategyForce, PushStrategy(""):
		return PushStrategyForce, nil
	case PushStrategyRebase:
		return PushStrategyRebase, nil
	default:
		return "", UnknownPushStrategyError{Value: value}
	}
}

// RepositoryManager exposes the git operations required to publish.
type RepositoryManager interface {
	SetConfigValue(executionContext context.Context, repositoryPath string, key string, value string) error
	StageRepositoryPaths(executionContext context.Context, repositoryPath string, paths []string) error
	Commit(executionContext context.Context, repositoryPath string, message string) error
	HeadCommit(executionContext context.Context, repositoryPath string) (string, error)
	PushHead(executionContext context.Context, repositoryPath string, remoteName string, branchName string, force bool) error
	FetchBranch(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
	Rebase(executionContext context.Context, repositoryPath string, upstream string) error
}

// PullRequestClient opens and looks up pull requests.
type PullRequestClient interface {
	CreatePullRequest(executionContext context.Context, request githubcli.PullRequestRequest) (githubcli.PullRequest, error)
	ListPullRequests(executionContext context.Context, repository string, options githubcli.PullRequestListOptions) ([]githubcli.PullRequest, error)
}

// WaitFunc pauses between push attempts; it returns early with the context error on cancellation.
type WaitFunc func(executionContext context.Context, duration time.Duration) error

// Dependencies enumerates collaborators required by Service.
type Dependencies struct {
	RepositoryManager RepositoryManager
	PullRequestClient PullRequestClient
	Logger            *zap.Logger
	Wait              WaitFunc
}

// CommitIdentity is the author recorded on automated commits.
type CommitIdentity struct {
	Name  string
	Email string
}

// CommitRequest describes the commit of the detected changes.
type CommitRequest struct {
	WorkingDirectory string
	// ChangedFiles are relative to the repository root.
	ChangedFiles []string
	Identity     CommitIdentity
	Message      string
}

// PushRequest describes how the head branch is pushed.
type PushRequest struct {
	WorkingDirectory string
	RemoteName       string
	BaseBranch       string
	HeadBranch       string
	Strategy         PushStrategy
	// Attempts bounds the number of pushes; values below one select the default of three.
	Attempts   int
	RetryDelay time.Duration
}

// PushResult reports how many attempts the push took.
type PushResult struct {
	Attempts int
}

// PullRequestResult reports the pull request that now tracks the head branch.
type PullRequestResult struct {
	PullRequest    githubcli.PullRequest
	AlreadyExisted bool
}

// Service publishes detected changes.
type Service struct {
	repositoryManager RepositoryManager
	pullRequestClient PullRequestClient
	logger            *zap.Logger
	wait              WaitFunc
}

// NewService constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.PullRequestClient == nil {
		return nil, ErrPullRequestClientNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := dependencies.Wait
	if wait == nil {
		wait = waitWithContext
	}
	return &Service{
		repositoryManager: dependencies.RepositoryManager,
		pullRequestClient: dependencies.PullRequestClient,
		logger:            logger,
		wait:              wait,
	}, nil
}

// Commit configures the automation identity, stages exactly the changed files, and commits them.
// It returns the new commit's object name.
func (service *Service) Commit(executionContext context.Context, request CommitRequest) (string, error) {
	workingDirectory := strings.TrimSpace(request.WorkingDirectory)
	if len(workingDirectory) == 0 {
		return "", ErrWorkingDirectoryRequired
	}
	if len(request.ChangedFiles) == 0 {
		return "", ErrChangedFilesRequired
	}
	if len(strings.TrimSpace(request.Identity.Name)) == 0 || len(strings.TrimSpace(request.Identity.Email)) == 0 {
		return "", ErrCommitIdentityRequired
	}
	if len(strings.TrimSpace(request.Message)) == 0 {
		return "", ErrCommitMessageRequired
	}

	if configError := service.repositoryManager.SetConfigValue(executionContext, workingDirectory, gitUserNameConfigKeyConstant, request.Identity.Name); configError != nil {
		return "", fmt.Errorf(identityFailureTemplateConstant, configError)
	}
	if configError := service.repositoryManager.SetConfigValue(executionContext, workingDirectory, gitUserEmailConfigKeyConstant, request.Identity.Email); configError != nil {
		return "", fmt.Errorf(identityFailureTemplateConstant, configError)
	}

	if stageError := service.repositoryManager.StageRepositoryPaths(executionContext, workingDirectory, request.ChangedFiles); stageError != nil {
		return "", fmt.Errorf(stageFailureTemplateConstant, strings.Join(request.ChangedFiles, changedFilesSeparatorConstant), stageError)
	}
	if commitError := service.repositoryManager.Commit(executionContext, workingDirectory, request.Message); commitError != nil {
		return "", fmt.Errorf(commitFailureTemplateConstant, commitError)
	}

	commitIdentifier, headError := service.repositoryManager.HeadCommit(executionContext, workingDirectory)
	if headError != nil {
		return "", fmt.Errorf(headCommitFailureTemplateConstant, headError)
	}
	service.logger.Info(commitCreatedMessageConstant, zap.String(logFieldCommitConstant, commitIdentifier), zap.Strings(logFieldFilesConstant, request.ChangedFiles))
	return commitIdentifier, nil
}

// Push sends HEAD to the head branch, retrying up to the configured number of attempts.
func (service *Service) Push(executionContext context.Context, request PushRequest) (PushResult, error) {
	if len(strings.TrimSpace(request.WorkingDirectory)) == 0 {
		return PushResult{}, ErrWorkingDirectoryRequired
	}
	strategy, strategyError := ParsePushStrategy(string(request.Strategy))
	if strategyError != nil {
		return PushResult{}, strategyError
	}
	maximumAttempts := request.Attempts
	if maximumAttempts < 1 {
		maximumAttempts = defaultPushAttemptsConstant
	}
	force := strategy == PushStrategyForce

	var lastPushError error
	for attempt := 1; attempt <= maximumAttempts; attempt++ {
		lastPushError = service.repositoryManager.PushHead(executionContext, request.WorkingDirectory, request.RemoteName, request.HeadBranch, force)
		if lastPushError == nil {
			service.logger.Info(
				pushSucceededMessageConstant,
				zap.String(logFieldRemoteConstant, request.RemoteName),
				zap.String(logFieldBranchConstant, request.HeadBranch),
				zap.Int(logFieldAttemptConstant, attempt),
			)
			return PushResult{Attempts: attempt}, nil
		}

		service.logger.Warn(
			pushAttemptFailedMessageConstant,
			zap.Int(logFieldAttemptConstant, attempt),
			zap.Int(logFieldMaximumAttemptsConstant, maximumAttempts),
			zap.String(logFieldStrategyConstant, string(strategy)),
			zap.Error(lastPushError),
		)
		if attempt == maximumAttempts {
			break
		}
		if waitError := service.wait(executionContext, request.RetryDelay*time.Duration(attempt)); waitError != nil {
			return PushResult{Attempts: attempt}, waitError
		}
		if strategy == PushStrategyRebase {
			if recoveryError := service.rebaseOntoBase(executionContext, request); recoveryError != nil {
				return PushResult{Attempts: attempt}, recoveryError
			}
		}
	}

	return PushResult{Attempts: maximumAttempts}, PushAttemptsExhaustedError{
		Remote:   request.RemoteName,
		Branch:   request.HeadBranch,
		Attempts: maximumAttempts,
		Cause:    lastPushError,
	}
}

// OpenPullRequest requests a pull request from head into base. An already open
// pull request for the head branch is reported through AlreadyExisted rather than as an error.
func (service *Service) OpenPullRequest(executionContext context.Context, request githubcli.PullRequestRequest) (PullRequestResult, error) {
	pullRequest, createError := service.pullRequestClient.CreatePullRequest(executionContext, request)
	if createError == nil {
		service.logger.Info(
			pullRequestOpenedMessageConstant,
			zap.Int(logFieldPullRequestNumberConstant, pullRequest.Number),
			zap.String(logFieldPullRequestURLConstant, pullRequest.URL),
		)
		return PullRequestResult{PullRequest: pullRequest}, nil
	}
	if !errors.Is(createError, githubcli.ErrPullRequestAlreadyExists) {
		return PullRequestResult{}, PullRequestError{Base: request.Base, Head: request.Head, Cause: createError}
	}

	result := PullRequestResult{AlreadyExisted: true}
	existingPullRequests, listError := service.pullRequestClient.ListPullRequests(executionContext, request.Repository, githubcli.PullRequestListOptions{
		State:       githubcli.PullRequestStateOpen,
		BaseBranch:  request.Base,
		HeadBranch:  request.Head,
		ResultLimit: 1,
	})
	if listError != nil {
		service.logger.Debug(pullRequestLookupFailedMessageConstant, zap.Error(listError))
	} else if len(existingPullRequests) > 0 {
		result.PullRequest = existingPullRequests[0]
	}

	service.logger.Info(
		pullRequestExistsMessageConstant,
		zap.String(logFieldBranchConstant, request.Head),
		zap.Int(logFieldPullRequestNumberConstant, result.PullRequest.Number),
		zap.String(logFieldPullRequestURLConstant, result.PullRequest.URL),
	)
	return result, nil
}

func (service *Service) rebaseOntoBase(executionContext context.Context, request PushRequest) error {
	baseReference := gitrepo.RemoteTrackingReference(request.RemoteName, request.BaseBranch)
	service.logger.Debug(rebasingBeforeRetryMessageConstant, zap.String(logFieldBaseReferenceConstant, baseReference))
	if fetchError := service.repositoryManager.FetchBranch(executionContext, request.WorkingDirectory, request.RemoteName, request.BaseBranch); fetchError != nil {
		return fmt.Errorf(rebaseFetchFailureTemplateConstant, baseReference, fetchError)
	}
	if rebaseError := service.repositoryManager.Rebase(executionContext, request.WorkingDirectory, baseReference); rebaseError != nil {
		return fmt.Errorf(rebaseFailureTemplateConstant, baseReference, rebaseError)
	}
	return nil
}

func waitWithContext(executionContext context.Context, duration time.Duration) error {
	if duration <= 0 {
		return executionContext.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}

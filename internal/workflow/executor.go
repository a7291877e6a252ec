package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/depsupdate/internal/branches/position"
	"github.com/temirov/depsupdate/internal/githubauth"
	"github.com/temirov/depsupdate/internal/githubcli"
	"github.com/temirov/depsupdate/internal/gitrepo"
	"github.com/temirov/depsupdate/internal/publish"
	"github.com/temirov/depsupdate/internal/updates"
)

const (
	// UpdatesAvailableOutputName is the step output reporting whether the manifest files changed.
	UpdatesAvailableOutputName = "updates-available"

	githubRepositoryEnvironmentConstant    = "GITHUB_REPOSITORY"
	outputsNotConfiguredMessageConstant    = "workflow outputs not configured"
	serviceBuilderNotConfiguredMessage     = "workflow service builder not configured"
	serviceConstructionErrorTemplate       = "unable to construct workflow services: %w"
	stepFailedTemplateConstant             = "%s failed: %w"
	outputWriteErrorTemplateConstant       = "unable to set output %s: %w"
	repositoryResolutionErrorTemplate      = "unable to determine the repository: %w"
	runStartedMessageConstant              = "Dependency update started"
	baseBranchMessageConstant              = "Base branch is %s"
	headBranchMessageConstant              = "Head branch is %s"
	workingDirectoryMessageConstant        = "Working directory is %s"
	stateEnteredMessageConstant            = "Entering state"
	credentialResolvedMessageConstant      = "GitHub token resolved"
	outputWrittenMessageConstant           = "Output set"
	runSucceededMessageConstant            = "Dependency update finished"
	runFailedMessageConstant               = "Dependency update failed"
	logFieldRunIDConstant                  = "run_id"
	logFieldStateConstant                  = "state"
	logFieldSourceConstant                 = "source"
	logFieldOutputNameConstant             = "name"
	logFieldOutputValueConstant            = "value"
	logFieldUpdatesAvailableConstant       = "updates_available"
	logFieldPullRequestURLConstant         = "pull_request_url"
	logFieldPullRequestAlreadyExistedConst = "pull_request_already_existed"
	logFieldFailedStateConstant            = "failed_state"
)

var (
	// ErrOutputsNotConfigured indicates the executor was constructed without an output writer.
	ErrOutputsNotConfigured = errors.New(outputsNotConfiguredMessageConstant)
	// ErrServiceBuilderNotConfigured indicates the executor was constructed without a service builder.
	ErrServiceBuilderNotConfigured = errors.New(serviceBuilderNotConfiguredMessage)
)

// BranchPositioner prepares the head branch from the base branch.
type BranchPositioner interface {
	Position(executionContext context.Context, options position.Options) (position.Result, error)
}

// ChangeDetector runs the update command and reports manifest changes.
type ChangeDetector interface {
	Detect(executionContext context.Context, options updates.Options) (updates.DiffStatus, error)
}

// Publisher commits, pushes, and opens the pull request.
type Publisher interface {
	Commit(executionContext context.Context, request publish.CommitRequest) (string, error)
	Push(executionContext context.Context, request publish.PushRequest) (publish.PushResult, error)
	OpenPullRequest(executionContext context.Context, request githubcli.PullRequestRequest) (publish.PullRequestResult, error)
}

// RemoteURLReader reads the URL configured for a remote.
type RemoteURLReader interface {
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
}

// OutputWriter records step outputs.
type OutputWriter interface {
	SetOutput(name string, value string) error
}

// EnvironmentLookup reads a single environment variable.
type EnvironmentLookup func(key string) (string, bool)

// Services bundles the collaborators of a single run.
type Services struct {
	Positioner      BranchPositioner
	Detector        ChangeDetector
	Publisher       Publisher
	RemoteURLReader RemoteURLReader
}

// ServiceSettings carries the validated values needed to construct Services.
type ServiceSettings struct {
	Logger           *zap.Logger
	WorkingDirectory string
	GitHubToken      string
	CommandTimeout   time.Duration
}

// ServiceBuilder constructs the collaborators for a run once inputs are validated.
type ServiceBuilder func(settings ServiceSettings) (Services, error)

// Dependencies configures an Executor.
type Dependencies struct {
	Logger        *zap.Logger
	BuildServices ServiceBuilder
	Outputs       OutputWriter
	// LookupEnvironment defaults to os.LookupEnv.
	LookupEnvironment EnvironmentLookup
	// WorkspaceDirectory anchors a relative working directory; empty means the process directory.
	WorkspaceDirectory string
	NewRunID           func() string
}

// Executor runs the dependency update state machine.
type Executor struct {
	logger             *zap.Logger
	buildServices      ServiceBuilder
	outputs            OutputWriter
	lookupEnvironment  EnvironmentLookup
	workspaceDirectory string
	newRunID           func() string
}

// NewExecutor constructs an Executor.
func NewExecutor(dependencies Dependencies) (*Executor, error) {
	if dependencies.BuildServices == nil {
		return nil, ErrServiceBuilderNotConfigured
	}
	if dependencies.Outputs == nil {
		return nil, ErrOutputsNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lookupEnvironment := dependencies.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	newRunID := dependencies.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Executor{
		logger:             logger,
		buildServices:      dependencies.BuildServices,
		outputs:            dependencies.Outputs,
		lookupEnvironment:  lookupEnvironment,
		workspaceDirectory: strings.TrimSpace(dependencies.WorkspaceDirectory),
		newRunID:           newRunID,
	}, nil
}

type run struct {
	configuration    Configuration
	repositoryPath   string
	services         Services
	diffStatus       updates.DiffStatus
	logger           *zap.Logger
	outcome          Outcome
	outputRecorded   bool
	outputWriteError error
}

type stepFunction func(executionContext context.Context, current *run) (bool, error)

type step struct {
	state State
	run   stepFunction
}

// Execute runs one update. The returned error is nil exactly when the outcome succeeded, and the
// updates-available output is written exactly once on every path.
func (executor *Executor) Execute(executionContext context.Context, configuration Configuration) (Outcome, error) {
	runID := executor.newRunID()
	current := &run{
		configuration: configuration.sanitize(),
		logger:        executor.logger.With(zap.String(logFieldRunIDConstant, runID)),
		outcome:       Outcome{RunID: runID, FinalState: StateStart},
	}

	steps := []step{
		{state: StateValidateInput, run: executor.validateInput},
		{state: StatePositionBranch, run: executor.positionBranch},
		{state: StateDetectChanges, run: executor.detectChanges},
		{state: StateCommit, run: executor.commit},
		{state: StatePush, run: executor.push},
		{state: StateOpenPullRequest, run: executor.openPullRequest},
	}

	var failure error
	for _, currentStep := range steps {
		current.outcome.FinalState = currentStep.state
		current.logger.Debug(stateEnteredMessageConstant, zap.String(logFieldStateConstant, string(currentStep.state)))

		proceed, stepError := currentStep.run(executionContext, current)
		if stepError != nil {
			failure = fmt.Errorf(stepFailedTemplateConstant, currentStep.state, stepError)
			break
		}
		if !proceed {
			break
		}
	}

	executor.recordUpdatesAvailable(current)
	if failure == nil && current.outputWriteError != nil {
		current.outcome.FailedState = current.outcome.FinalState
		failure = current.outputWriteError
	}

	if failure != nil {
		if len(current.outcome.FailedState) == 0 {
			current.outcome.FailedState = current.outcome.FinalState
		}
		current.outcome.FinalState = StateFailed
		current.outcome.Succeeded = false
		current.outcome.ErrorMessage = failure.Error()
		current.logger.Error(
			runFailedMessageConstant,
			zap.String(logFieldFailedStateConstant, string(current.outcome.FailedState)),
			zap.Bool(logFieldUpdatesAvailableConstant, current.outcome.UpdatesAvailable),
			zap.Error(failure),
		)
		return current.outcome, failure
	}

	current.outcome.FinalState = StateDone
	current.outcome.Succeeded = true
	current.logger.Info(
		runSucceededMessageConstant,
		zap.Bool(logFieldUpdatesAvailableConstant, current.outcome.UpdatesAvailable),
		zap.String(logFieldPullRequestURLConstant, current.outcome.PullRequestURL),
		zap.Bool(logFieldPullRequestAlreadyExistedConst, current.outcome.PullRequestAlreadyExisted),
	)
	return current.outcome, nil
}

func (executor *Executor) validateInput(executionContext context.Context, current *run) (bool, error) {
	if validationError := current.configuration.validate(); validationError != nil {
		return false, validationError
	}

	token, tokenError := githubauth.Resolve(current.configuration.GitHubToken, githubauth.EnvironmentLookup(executor.lookupEnvironment))
	if tokenError != nil {
		return false, tokenError
	}
	current.logger.Debug(credentialResolvedMessageConstant, zap.String(logFieldSourceConstant, token.Source))

	current.repositoryPath = executor.resolveRepositoryPath(current.configuration.WorkingDirectory)
	current.logger.Info(runStartedMessageConstant)
	current.logger.Info(fmt.Sprintf(baseBranchMessageConstant, current.configuration.BaseBranch))
	current.logger.Info(fmt.Sprintf(headBranchMessageConstant, current.configuration.HeadBranch))
	current.logger.Info(fmt.Sprintf(workingDirectoryMessageConstant, current.configuration.WorkingDirectory))

	services, buildError := executor.buildServices(ServiceSettings{
		Logger:           current.logger,
		WorkingDirectory: current.repositoryPath,
		GitHubToken:      token.Value,
		CommandTimeout:   current.configuration.CommandTimeout,
	})
	if buildError != nil {
		return false, fmt.Errorf(serviceConstructionErrorTemplate, buildError)
	}
	current.services = services
	return true, nil
}

func (executor *Executor) positionBranch(executionContext context.Context, current *run) (bool, error) {
	_, positionError := current.services.Positioner.Position(executionContext, position.Options{
		RepositoryPath: current.repositoryPath,
		RemoteName:     current.configuration.RemoteName,
		BaseBranch:     current.configuration.BaseBranch,
		HeadBranch:     current.configuration.HeadBranch,
	})
	if positionError != nil {
		return false, positionError
	}
	return true, nil
}

func (executor *Executor) detectChanges(executionContext context.Context, current *run) (bool, error) {
	diffStatus, detectError := current.services.Detector.Detect(executionContext, updates.Options{
		WorkingDirectory: current.repositoryPath,
		UpdateCommand:    current.configuration.UpdateCommand,
		ManifestFiles:    current.configuration.ManifestFiles,
	})
	if detectError != nil {
		return false, detectError
	}

	current.diffStatus = diffStatus
	current.outcome.UpdatesAvailable = diffStatus.HasManifestChanges
	current.outcome.ChangedFiles = append([]string{}, diffStatus.ChangedFiles...)
	executor.recordUpdatesAvailable(current)
	if current.outputWriteError != nil {
		return false, current.outputWriteError
	}

	return diffStatus.HasManifestChanges, nil
}

func (executor *Executor) commit(executionContext context.Context, current *run) (bool, error) {
	commitID, commitError := current.services.Publisher.Commit(executionContext, publish.CommitRequest{
		WorkingDirectory: current.repositoryPath,
		ChangedFiles:     current.diffStatus.ChangedFiles,
		Identity: publish.CommitIdentity{
			Name:  current.configuration.GitUserName,
			Email: current.configuration.GitUserEmail,
		},
		Message: current.configuration.CommitMessage,
	})
	if commitError != nil {
		return false, commitError
	}
	current.outcome.CommitID = commitID
	return true, nil
}

func (executor *Executor) push(executionContext context.Context, current *run) (bool, error) {
	pushResult, pushError := current.services.Publisher.Push(executionContext, publish.PushRequest{
		WorkingDirectory: current.repositoryPath,
		RemoteName:       current.configuration.RemoteName,
		BaseBranch:       current.configuration.BaseBranch,
		HeadBranch:       current.configuration.HeadBranch,
		Strategy:         publish.PushStrategy(current.configuration.PushStrategy),
		Attempts:         current.configuration.PushAttempts,
		RetryDelay:       current.configuration.PushRetryDelay,
	})
	current.outcome.PushAttempts = pushResult.Attempts
	if pushError != nil {
		return false, pushError
	}
	return true, nil
}

func (executor *Executor) openPullRequest(executionContext context.Context, current *run) (bool, error) {
	repository, repositoryError := executor.resolveRepository(executionContext, current)
	if repositoryError != nil {
		return false, fmt.Errorf(repositoryResolutionErrorTemplate, repositoryError)
	}

	pullRequestResult, pullRequestError := current.services.Publisher.OpenPullRequest(executionContext, githubcli.PullRequestRequest{
		Repository: repository,
		Title:      current.configuration.PullRequestTitle,
		Body:       current.configuration.PullRequestBody,
		Base:       current.configuration.BaseBranch,
		Head:       current.configuration.HeadBranch,
	})
	if pullRequestError != nil {
		return false, pullRequestError
	}

	current.outcome.PullRequestNumber = pullRequestResult.PullRequest.Number
	current.outcome.PullRequestURL = pullRequestResult.PullRequest.URL
	current.outcome.PullRequestAlreadyExisted = pullRequestResult.AlreadyExisted
	return false, nil
}

// recordUpdatesAvailable writes the output on its first call only. Runs that fail before detection report false.
func (executor *Executor) recordUpdatesAvailable(current *run) {
	if current.outputRecorded {
		return
	}
	current.outputRecorded = true

	outputValue := strconv.FormatBool(current.outcome.UpdatesAvailable)
	if writeError := executor.outputs.SetOutput(UpdatesAvailableOutputName, outputValue); writeError != nil {
		current.outputWriteError = fmt.Errorf(outputWriteErrorTemplateConstant, UpdatesAvailableOutputName, writeError)
		return
	}
	current.logger.Debug(
		outputWrittenMessageConstant,
		zap.String(logFieldOutputNameConstant, UpdatesAvailableOutputName),
		zap.String(logFieldOutputValueConstant, outputValue),
	)
}

func (executor *Executor) resolveRepositoryPath(workingDirectory string) string {
	if len(executor.workspaceDirectory) == 0 || filepath.IsAbs(workingDirectory) {
		return workingDirectory
	}
	return filepath.Join(executor.workspaceDirectory, workingDirectory)
}

// resolveRepository prefers the configured repository, then GITHUB_REPOSITORY, then the remote URL.
func (executor *Executor) resolveRepository(executionContext context.Context, current *run) (string, error) {
	if len(current.configuration.Repository) > 0 {
		return current.configuration.Repository, nil
	}
	if environmentRepository, exists := executor.lookupEnvironment(githubRepositoryEnvironmentConstant); exists && len(strings.TrimSpace(environmentRepository)) > 0 {
		return strings.TrimSpace(environmentRepository), nil
	}

	remoteURL, remoteError := current.services.RemoteURLReader.GetRemoteURL(executionContext, current.repositoryPath, current.configuration.RemoteName)
	if remoteError != nil {
		return "", remoteError
	}
	parsedRemote, parseError := gitrepo.ParseRemoteURL(remoteURL)
	if parseError != nil {
		return "", parseError
	}
	return parsedRemote.RepositoryIdentifier(), nil
}

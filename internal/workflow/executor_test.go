package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depsupdate/internal/branches/position"
	"github.com/temirov/depsupdate/internal/githubauth"
	"github.com/temirov/depsupdate/internal/githubcli"
	"github.com/temirov/depsupdate/internal/publish"
	"github.com/temirov/depsupdate/internal/updates"
	"github.com/temirov/depsupdate/internal/validation"
)

const (
	testBaseBranchConstant       = "main"
	testHeadBranchConstant       = "deps/update-1"
	testWorkingDirectoryConstant = "pkg"
	testTokenConstant            = "ghp_test_token"
	testRunIDConstant            = "run-1"
	testPullRequestURLConstant   = "https://github.com/octo/demo/pull/7"
)

type recordedOutput struct {
	name  string
	value string
}

type recordingOutputs struct {
	outputs    []recordedOutput
	writeError error
}

func (outputs *recordingOutputs) SetOutput(name string, value string) error {
	outputs.outputs = append(outputs.outputs, recordedOutput{name: name, value: value})
	return outputs.writeError
}

type stubPositioner struct {
	calls         []position.Options
	positionError error
}

func (positioner *stubPositioner) Position(_ context.Context, options position.Options) (position.Result, error) {
	positioner.calls = append(positioner.calls, options)
	if positioner.positionError != nil {
		return position.Result{}, positioner.positionError
	}
	return position.Result{HeadBranch: options.HeadBranch}, nil
}

type stubDetector struct {
	calls       []updates.Options
	status      updates.DiffStatus
	detectError error
}

func (detector *stubDetector) Detect(_ context.Context, options updates.Options) (updates.DiffStatus, error) {
	detector.calls = append(detector.calls, options)
	return detector.status, detector.detectError
}

type stubPublisher struct {
	steps             []string
	commitRequests    []publish.CommitRequest
	pushRequests      []publish.PushRequest
	pullRequests      []githubcli.PullRequestRequest
	commitError       error
	pushError         error
	pullRequestResult publish.PullRequestResult
	pullRequestError  error
}

func (publisher *stubPublisher) Commit(_ context.Context, request publish.CommitRequest) (string, error) {
	publisher.steps = append(publisher.steps, "commit")
	publisher.commitRequests = append(publisher.commitRequests, request)
	if publisher.commitError != nil {
		return "", publisher.commitError
	}
	return "abc123", nil
}

func (publisher *stubPublisher) Push(_ context.Context, request publish.PushRequest) (publish.PushResult, error) {
	publisher.steps = append(publisher.steps, "push")
	publisher.pushRequests = append(publisher.pushRequests, request)
	if publisher.pushError != nil {
		return publish.PushResult{Attempts: request.Attempts}, publisher.pushError
	}
	return publish.PushResult{Attempts: 1}, nil
}

func (publisher *stubPublisher) OpenPullRequest(_ context.Context, request githubcli.PullRequestRequest) (publish.PullRequestResult, error) {
	publisher.steps = append(publisher.steps, "open_pr")
	publisher.pullRequests = append(publisher.pullRequests, request)
	return publisher.pullRequestResult, publisher.pullRequestError
}

type stubRemoteURLReader struct {
	remoteURL string
	calls     int
}

func (reader *stubRemoteURLReader) GetRemoteURL(context.Context, string, string) (string, error) {
	reader.calls++
	return reader.remoteURL, nil
}

type executorFixture struct {
	positioner      *stubPositioner
	detector        *stubDetector
	publisher       *stubPublisher
	remoteURLReader *stubRemoteURLReader
	outputs         *recordingOutputs
	settings        []ServiceSettings
	environment     map[string]string
}

func newExecutorFixture() *executorFixture {
	return &executorFixture{
		positioner:      &stubPositioner{},
		detector:        &stubDetector{},
		publisher:       &stubPublisher{pullRequestResult: publish.PullRequestResult{PullRequest: githubcli.PullRequest{Number: 7, URL: testPullRequestURLConstant}}},
		remoteURLReader: &stubRemoteURLReader{remoteURL: "git@github.com:octo/demo.git"},
		outputs:         &recordingOutputs{},
		environment:     map[string]string{},
	}
}

func (fixture *executorFixture) executor(testInstance *testing.T) *Executor {
	executor, creationError := NewExecutor(Dependencies{
		BuildServices: func(settings ServiceSettings) (Services, error) {
			fixture.settings = append(fixture.settings, settings)
			return Services{
				Positioner:      fixture.positioner,
				Detector:        fixture.detector,
				Publisher:       fixture.publisher,
				RemoteURLReader: fixture.remoteURLReader,
			}, nil
		},
		Outputs: fixture.outputs,
		LookupEnvironment: func(key string) (string, bool) {
			value, exists := fixture.environment[key]
			return value, exists
		},
		NewRunID: func() string { return testRunIDConstant },
	})
	require.NoError(testInstance, creationError)
	return executor
}

func validConfiguration() Configuration {
	configuration := DefaultConfiguration()
	configuration.BaseBranch = testBaseBranchConstant
	configuration.HeadBranch = testHeadBranchConstant
	configuration.WorkingDirectory = testWorkingDirectoryConstant
	configuration.GitHubToken = testTokenConstant
	return configuration
}

func manifestChanges() updates.DiffStatus {
	return updates.DiffStatus{
		HasManifestChanges: true,
		ChangedFiles:       []string{"pkg/package.json", "pkg/package-lock.json"},
	}
}

func TestExecutorRejectsInvalidInputBeforeAnyCommand(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(configuration *Configuration)
		expectedError error
	}{
		{
			name:          "base_branch_with_shell_metacharacters",
			mutate:        func(configuration *Configuration) { configuration.BaseBranch = "main; rm -rf /" },
			expectedError: validation.ConfigurationError{},
		},
		{
			name:          "head_branch_with_space",
			mutate:        func(configuration *Configuration) { configuration.HeadBranch = "deps update" },
			expectedError: validation.ConfigurationError{},
		},
		{
			name:          "working_directory_with_dot",
			mutate:        func(configuration *Configuration) { configuration.WorkingDirectory = "../pkg" },
			expectedError: validation.ConfigurationError{},
		},
		{
			name:          "missing_working_directory",
			mutate:        func(configuration *Configuration) { configuration.WorkingDirectory = "" },
			expectedError: validation.ConfigurationError{},
		},
		{
			name:          "unknown_push_strategy",
			mutate:        func(configuration *Configuration) { configuration.PushStrategy = "merge" },
			expectedError: publish.UnknownPushStrategyError{},
		},
		{
			name:          "invalid_manifest_pattern",
			mutate:        func(configuration *Configuration) { configuration.ManifestFiles = []string{"package[.json"} },
			expectedError: updates.InvalidManifestPatternError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newExecutorFixture()
			configuration := validConfiguration()
			testCase.mutate(&configuration)

			outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), configuration)

			require.Error(testInstance, executionError)
			require.IsType(testInstance, testCase.expectedError, errors.Unwrap(executionError))
			require.Equal(testInstance, StateFailed, outcome.FinalState)
			require.Equal(testInstance, StateValidateInput, outcome.FailedState)
			require.False(testInstance, outcome.Succeeded)
			require.False(testInstance, outcome.UpdatesAvailable)
			require.Equal(testInstance, executionError.Error(), outcome.ErrorMessage)
			require.Empty(testInstance, fixture.settings)
			require.Empty(testInstance, fixture.positioner.calls)
			require.Equal(testInstance, []recordedOutput{{name: UpdatesAvailableOutputName, value: "false"}}, fixture.outputs.outputs)
		})
	}
}

func TestExecutorRequiresGitHubToken(testInstance *testing.T) {
	fixture := newExecutorFixture()
	configuration := validConfiguration()
	configuration.GitHubToken = ""

	outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), configuration)

	require.ErrorIs(testInstance, executionError, githubauth.ErrTokenNotFound)
	require.Equal(testInstance, StateValidateInput, outcome.FailedState)
	require.Empty(testInstance, fixture.settings)
}

func TestExecutorFallsBackToEnvironmentToken(testInstance *testing.T) {
	fixture := newExecutorFixture()
	fixture.environment["GITHUB_TOKEN"] = "env-token"
	configuration := validConfiguration()
	configuration.GitHubToken = ""

	_, executionError := fixture.executor(testInstance).Execute(context.Background(), configuration)

	require.NoError(testInstance, executionError)
	require.Len(testInstance, fixture.settings, 1)
	require.Equal(testInstance, "env-token", fixture.settings[0].GitHubToken)
}

func TestExecutorStopsWhenNothingChanged(testInstance *testing.T) {
	fixture := newExecutorFixture()

	outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), validConfiguration())

	require.NoError(testInstance, executionError)
	require.Equal(testInstance, StateDone, outcome.FinalState)
	require.True(testInstance, outcome.Succeeded)
	require.False(testInstance, outcome.UpdatesAvailable)
	require.Equal(testInstance, testRunIDConstant, outcome.RunID)
	require.Len(testInstance, fixture.positioner.calls, 1)
	require.Len(testInstance, fixture.detector.calls, 1)
	require.Empty(testInstance, fixture.publisher.steps)
	require.Equal(testInstance, []recordedOutput{{name: UpdatesAvailableOutputName, value: "false"}}, fixture.outputs.outputs)
}

func TestExecutorPublishesDetectedChanges(testInstance *testing.T) {
	fixture := newExecutorFixture()
	fixture.detector.status = manifestChanges()

	outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), validConfiguration())

	require.NoError(testInstance, executionError)
	require.Equal(testInstance, StateDone, outcome.FinalState)
	require.True(testInstance, outcome.Succeeded)
	require.True(testInstance, outcome.UpdatesAvailable)
	require.Equal(testInstance, "abc123", outcome.CommitID)
	require.Equal(testInstance, 7, outcome.PullRequestNumber)
	require.Equal(testInstance, testPullRequestURLConstant, outcome.PullRequestURL)
	require.Equal(testInstance, []string{"commit", "push", "open_pr"}, fixture.publisher.steps)

	require.Equal(testInstance, position.Options{
		RepositoryPath: testWorkingDirectoryConstant,
		RemoteName:     "origin",
		BaseBranch:     testBaseBranchConstant,
		HeadBranch:     testHeadBranchConstant,
	}, fixture.positioner.calls[0])

	commitRequest := fixture.publisher.commitRequests[0]
	require.Equal(testInstance, manifestChanges().ChangedFiles, commitRequest.ChangedFiles)
	require.Equal(testInstance, "chore: update dependencies", commitRequest.Message)
	require.Equal(testInstance, "github-actions[bot]", commitRequest.Identity.Name)

	pushRequest := fixture.publisher.pushRequests[0]
	require.Equal(testInstance, publish.PushStrategyForce, pushRequest.Strategy)
	require.Equal(testInstance, 3, pushRequest.Attempts)

	require.Equal(testInstance, githubcli.PullRequestRequest{
		Repository: "octo/demo",
		Title:      defaultPullRequestTitleConstant,
		Body:       defaultPullRequestBodyConstant,
		Base:       testBaseBranchConstant,
		Head:       testHeadBranchConstant,
	}, fixture.publisher.pullRequests[0])

	require.Equal(testInstance, []recordedOutput{{name: UpdatesAvailableOutputName, value: "true"}}, fixture.outputs.outputs)
}

func TestExecutorTreatsExistingPullRequestAsSuccess(testInstance *testing.T) {
	fixture := newExecutorFixture()
	fixture.detector.status = manifestChanges()
	fixture.publisher.pullRequestResult = publish.PullRequestResult{
		AlreadyExisted: true,
		PullRequest:    githubcli.PullRequest{Number: 3, URL: "https://github.com/octo/demo/pull/3"},
	}

	outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), validConfiguration())

	require.NoError(testInstance, executionError)
	require.Equal(testInstance, StateDone, outcome.FinalState)
	require.True(testInstance, outcome.UpdatesAvailable)
	require.True(testInstance, outcome.PullRequestAlreadyExisted)
	require.Equal(testInstance, 3, outcome.PullRequestNumber)
}

func TestExecutorFailureKeepsDetectedUpdates(testInstance *testing.T) {
	pullRequestFailure := publish.PullRequestError{Base: testBaseBranchConstant, Head: testHeadBranchConstant, Cause: errors.New("HTTP 403: Resource not accessible by integration")}
	pushFailure := publish.PushAttemptsExhaustedError{Remote: "origin", Branch: testHeadBranchConstant, Attempts: 3, Cause: errors.New("rejected")}

	testCases := []struct {
		name                string
		configure           func(fixture *executorFixture)
		expectedFailedState State
		expectedSteps       []string
		expectedCause       error
		expectedMessagePart string
	}{
		{
			name:                "pull_request_rejected",
			configure:           func(fixture *executorFixture) { fixture.publisher.pullRequestError = pullRequestFailure },
			expectedFailedState: StateOpenPullRequest,
			expectedSteps:       []string{"commit", "push", "open_pr"},
			expectedCause:       pullRequestFailure,
			expectedMessagePart: "Resource not accessible by integration",
		},
		{
			name:                "push_attempts_exhausted",
			configure:           func(fixture *executorFixture) { fixture.publisher.pushError = pushFailure },
			expectedFailedState: StatePush,
			expectedSteps:       []string{"commit", "push"},
			expectedCause:       pushFailure,
			expectedMessagePart: "rejected",
		},
		{
			name:                "commit_failed",
			configure:           func(fixture *executorFixture) { fixture.publisher.commitError = errors.New("nothing to commit") },
			expectedFailedState: StateCommit,
			expectedSteps:       []string{"commit"},
			expectedMessagePart: "nothing to commit",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newExecutorFixture()
			fixture.detector.status = manifestChanges()
			testCase.configure(fixture)

			outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), validConfiguration())

			require.Error(testInstance, executionError)
			if testCase.expectedCause != nil {
				require.ErrorIs(testInstance, executionError, testCase.expectedCause)
			}
			require.Contains(testInstance, outcome.ErrorMessage, testCase.expectedMessagePart)
			require.Equal(testInstance, StateFailed, outcome.FinalState)
			require.Equal(testInstance, testCase.expectedFailedState, outcome.FailedState)
			require.True(testInstance, outcome.UpdatesAvailable)
			require.Equal(testInstance, testCase.expectedSteps, fixture.publisher.steps)
			require.Equal(testInstance, []recordedOutput{{name: UpdatesAvailableOutputName, value: "true"}}, fixture.outputs.outputs)
		})
	}
}

func TestExecutorStopsOnPositioningFailure(testInstance *testing.T) {
	fixture := newExecutorFixture()
	fixture.positioner.positionError = errors.New("fetch failed")

	outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), validConfiguration())

	require.Error(testInstance, executionError)
	require.Equal(testInstance, StatePositionBranch, outcome.FailedState)
	require.Empty(testInstance, fixture.detector.calls)
	require.Empty(testInstance, fixture.publisher.steps)
	require.Equal(testInstance, []recordedOutput{{name: UpdatesAvailableOutputName, value: "false"}}, fixture.outputs.outputs)
}

func TestExecutorFailsWhenOutputCannotBeWritten(testInstance *testing.T) {
	fixture := newExecutorFixture()
	fixture.outputs.writeError = errors.New("disk full")

	outcome, executionError := fixture.executor(testInstance).Execute(context.Background(), validConfiguration())

	require.Error(testInstance, executionError)
	require.Equal(testInstance, StateDetectChanges, outcome.FailedState)
	require.Len(testInstance, fixture.outputs.outputs, 1)
}

func TestExecutorResolvesRepository(testInstance *testing.T) {
	testCases := []struct {
		name               string
		configured         string
		environment        map[string]string
		expectedRepository string
		expectRemoteLookup bool
	}{
		{
			name:               "configured",
			configured:         "octo/configured",
			environment:        map[string]string{"GITHUB_REPOSITORY": "octo/environment"},
			expectedRepository: "octo/configured",
		},
		{
			name:               "environment",
			environment:        map[string]string{"GITHUB_REPOSITORY": "octo/environment"},
			expectedRepository: "octo/environment",
		},
		{
			name:               "remote_url",
			environment:        map[string]string{},
			expectedRepository: "octo/demo",
			expectRemoteLookup: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newExecutorFixture()
			fixture.detector.status = manifestChanges()
			fixture.environment = testCase.environment
			configuration := validConfiguration()
			configuration.Repository = testCase.configured

			_, executionError := fixture.executor(testInstance).Execute(context.Background(), configuration)

			require.NoError(testInstance, executionError)
			require.Equal(testInstance, testCase.expectedRepository, fixture.publisher.pullRequests[0].Repository)
			require.Equal(testInstance, testCase.expectRemoteLookup, fixture.remoteURLReader.calls == 1)
		})
	}
}

func TestExecutorAnchorsWorkingDirectoryInWorkspace(testInstance *testing.T) {
	fixture := newExecutorFixture()
	executor := fixture.executor(testInstance)
	executor.workspaceDirectory = "/workspace/repo"

	_, executionError := executor.Execute(context.Background(), validConfiguration())

	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "/workspace/repo/pkg", fixture.settings[0].WorkingDirectory)
	require.Equal(testInstance, "/workspace/repo/pkg", fixture.detector.calls[0].WorkingDirectory)
}

func TestNewExecutorRequiresDependencies(testInstance *testing.T) {
	_, builderError := NewExecutor(Dependencies{Outputs: &recordingOutputs{}})
	require.ErrorIs(testInstance, builderError, ErrServiceBuilderNotConfigured)

	_, outputsError := NewExecutor(Dependencies{BuildServices: func(ServiceSettings) (Services, error) { return Services{}, nil }})
	require.ErrorIs(testInstance, outputsError, ErrOutputsNotConfigured)
}

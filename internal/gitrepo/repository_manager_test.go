package gitrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depsupdate/internal/execshell"
	"github.com/temirov/depsupdate/internal/gitrepo"
)

const (
	testRepositoryPathConstant = "/workspace/repo/pkg"
	testRemoteNameConstant     = "origin"
)

type scriptedGitExecutor struct {
	results          []execshell.ExecutionResult
	errors           []error
	recordedCommands []execshell.CommandDetails
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	callIndex := len(executor.recordedCommands)
	executor.recordedCommands = append(executor.recordedCommands, details)
	var result execshell.ExecutionResult
	if callIndex < len(executor.results) {
		result = executor.results[callIndex]
	}
	var executionError error
	if callIndex < len(executor.errors) {
		executionError = executor.errors[callIndex]
	}
	return result, executionError
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	manager, creationError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrGitExecutorNotConfigured)
	require.Nil(testInstance, manager)
}

func TestRemoteBranchExistsClassifiesExitCodes(testInstance *testing.T) {
	testCases := []struct {
		name           string
		exitCode       int
		expectedExists bool
		expectError    bool
	}{
		{name: "found", exitCode: 0, expectedExists: true},
		{name: "not_found", exitCode: 2, expectedExists: false},
		{name: "unexpected_failure", exitCode: 128, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{results: []execshell.ExecutionResult{{ExitCode: testCase.exitCode}}}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			exists, existsError := manager.RemoteBranchExists(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "deps/update-1")
			if testCase.expectError {
				require.Error(testInstance, existsError)
				require.IsType(testInstance, execshell.CommandFailedError{}, existsError)
			} else {
				require.NoError(testInstance, existsError)
				require.Equal(testInstance, testCase.expectedExists, exists)
			}

			require.Len(testInstance, executor.recordedCommands, 1)
			recorded := executor.recordedCommands[0]
			require.Equal(testInstance, []string{"ls-remote", "--exit-code", "--heads", "origin", "refs/heads/deps/update-1"}, recorded.Arguments)
			require.True(testInstance, recorded.IgnoreFailure)
			require.Equal(testInstance, "0", recorded.EnvironmentVariables["GIT_TERMINAL_PROMPT"])
			require.Equal(testInstance, testRepositoryPathConstant, recorded.WorkingDirectory)
		})
	}
}

func TestRepositoryManagerBuildsGitArguments(testInstance *testing.T) {
	testCases := []struct {
		name              string
		invoke            func(manager *gitrepo.RepositoryManager) error
		expectedArguments []string
	}{
		{
			name: "fetch_all_branches",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.FetchAllBranches(context.Background(), testRepositoryPathConstant, testRemoteNameConstant)
			},
			expectedArguments: []string{"fetch", "--prune", "origin", "+refs/heads/*:refs/remotes/origin/*"},
		},
		{
			name: "fetch_branch",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.FetchBranch(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "main")
			},
			expectedArguments: []string{"fetch", "origin", "+refs/heads/main:refs/remotes/origin/main"},
		},
		{
			name: "checkout_branch",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.CheckoutBranch(context.Background(), testRepositoryPathConstant, "deps", "origin/main")
			},
			expectedArguments: []string{"checkout", "--force", "-B", "deps", "origin/main"},
		},
		{
			name: "reset_hard",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.ResetHard(context.Background(), testRepositoryPathConstant, "origin/main")
			},
			expectedArguments: []string{"reset", "--hard", "origin/main"},
		},
		{
			name: "stage_repository_paths",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.StageRepositoryPaths(context.Background(), testRepositoryPathConstant, []string{"pkg/package.json", "pkg/package-lock.json"})
			},
			expectedArguments: []string{"add", "--", ":(top)pkg/package.json", ":(top)pkg/package-lock.json"},
		},
		{
			name: "commit",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.Commit(context.Background(), testRepositoryPathConstant, "chore: update dependencies")
			},
			expectedArguments: []string{"commit", "-m", "chore: update dependencies"},
		},
		{
			name: "force_push",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.PushHead(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "deps", true)
			},
			expectedArguments: []string{"push", "--force", "origin", "HEAD:refs/heads/deps"},
		},
		{
			name: "push",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.PushHead(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "deps", false)
			},
			expectedArguments: []string{"push", "origin", "HEAD:refs/heads/deps"},
		},
		{
			name: "set_config_value",
			invoke: func(manager *gitrepo.RepositoryManager) error {
				return manager.SetConfigValue(context.Background(), testRepositoryPathConstant, "user.name", "github-actions[bot]")
			},
			expectedArguments: []string{"config", "user.name", "github-actions[bot]"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, testCase.invoke(manager))
			require.Len(testInstance, executor.recordedCommands, 1)
			require.Equal(testInstance, testCase.expectedArguments, executor.recordedCommands[0].Arguments)
			require.Equal(testInstance, testRepositoryPathConstant, executor.recordedCommands[0].WorkingDirectory)
		})
	}
}

func TestRepositoryManagerStatusParsesPorcelainOutput(testInstance *testing.T) {
	executor := &scriptedGitExecutor{results: []execshell.ExecutionResult{{
		StandardOutput: " M pkg/package.json\n?? pkg/package-lock.json\nR  pkg/old.json -> pkg/package.json\n",
	}}}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	entries, statusError := manager.Status(context.Background(), testRepositoryPathConstant, []string{"package.json", "package-lock.json"})
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, []gitrepo.StatusEntry{
		{Code: "M", Path: "pkg/package.json"},
		{Code: "??", Path: "pkg/package-lock.json"},
		{Code: "R", Path: "pkg/package.json"},
	}, entries)
	require.Equal(testInstance, []string{"status", "--porcelain", "--untracked-files=all", "--", "package.json", "package-lock.json"}, executor.recordedCommands[0].Arguments)
}

func TestRepositoryManagerStatusRequiresPathspecs(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	_, statusError := manager.Status(context.Background(), testRepositoryPathConstant, nil)
	require.ErrorIs(testInstance, statusError, gitrepo.ErrPathsRequired)
	require.Empty(testInstance, executor.recordedCommands)
}

func TestRepositoryManagerRebaseAbortsOnFailure(testInstance *testing.T) {
	rebaseFailure := errors.New("conflict")
	executor := &scriptedGitExecutor{errors: []error{rebaseFailure, nil}}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	rebaseError := manager.Rebase(context.Background(), testRepositoryPathConstant, "origin/main")
	require.ErrorIs(testInstance, rebaseError, rebaseFailure)
	require.Len(testInstance, executor.recordedCommands, 2)
	require.Equal(testInstance, []string{"rebase", "--autostash", "origin/main"}, executor.recordedCommands[0].Arguments)
	require.Equal(testInstance, []string{"rebase", "--abort"}, executor.recordedCommands[1].Arguments)
}

func TestRepositoryManagerRejectsMissingValues(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	require.ErrorIs(testInstance, manager.FetchAllBranches(context.Background(), "", testRemoteNameConstant), gitrepo.ErrRepositoryPathRequired)
	require.ErrorIs(testInstance, manager.FetchAllBranches(context.Background(), testRepositoryPathConstant, " "), gitrepo.ErrRemoteNameRequired)
	require.ErrorIs(testInstance, manager.PushHead(context.Background(), testRepositoryPathConstant, testRemoteNameConstant, "", true), gitrepo.ErrBranchNameRequired)
	require.Empty(testInstance, executor.recordedCommands)
}

func TestRemoteTrackingReference(testInstance *testing.T) {
	require.Equal(testInstance, "origin/deps/update-1", gitrepo.RemoteTrackingReference("origin", "deps/update-1"))
}

func TestRepositoryManagerRepositoryPrefix(testInstance *testing.T) {
	executor := &scriptedGitExecutor{results: []execshell.ExecutionResult{{StandardOutput: "pkg/\n"}}}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	prefix, prefixError := manager.RepositoryPrefix(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, prefixError)
	require.Equal(testInstance, "pkg/", prefix)
	require.Equal(testInstance, []string{"rev-parse", "--show-prefix"}, executor.recordedCommands[0].Arguments)
}

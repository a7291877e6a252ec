package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/depsupdate/internal/execshell"
)

const (
	gitExecutorMissingMessageConstant           = "git executor not configured"
	repositoryPathRequiredMessageConstant       = "repository path must be provided"
	remoteNameRequiredMessageConstant           = "remote name must be provided"
	branchNameRequiredMessageConstant           = "branch name must be provided"
	pathsRequiredMessageConstant                = "at least one path must be provided"
	gitFetchSubcommandConstant                  = "fetch"
	gitFetchPruneFlagConstant                   = "--prune"
	gitLSRemoteSubcommandConstant               = "ls-remote"
	gitExitCodeFlagConstant                     = "--exit-code"
	gitHeadsFlagConstant                        = "--heads"
	gitCheckoutSubcommandConstant               = "checkout"
	gitCreateOrResetBranchFlagConstant          = "-B"
	gitAutostashFlagConstant                    = "--autostash"
	gitResetSubcommandConstant                  = "reset"
	gitHardFlagConstant                         = "--hard"
	gitStatusSubcommandConstant                 = "status"
	gitPorcelainFlagConstant                    = "--porcelain"
	gitUntrackedFilesAllFlagConstant            = "--untracked-files=all"
	gitAddSubcommandConstant                    = "add"
	gitCommitSubcommandConstant                 = "commit"
	gitMessageFlagConstant                      = "-m"
	gitPushSubcommandConstant                   = "push"
	gitForceFlagConstant                        = "--force"
	gitRebaseSubcommandConstant                 = "rebase"
	gitAbortFlagConstant                        = "--abort"
	gitConfigSubcommandConstant                 = "config"
	gitRemoteSubcommandConstant                 = "remote"
	gitGetURLSubcommandConstant                 = "get-url"
	gitRevParseSubcommandConstant               = "rev-parse"
	gitShowPrefixFlagConstant                   = "--show-prefix"
	gitPathspecSeparatorConstant                = "--"
	gitTopPathspecPrefixConstant                = ":(top)"
	gitHeadReferenceConstant                    = "HEAD"
	gitBranchReferencePrefixConstant            = "refs/heads/"
	fetchAllBranchesRefspecTemplateConstant     = "+refs/heads/*:refs/remotes/%s/*"
	fetchBranchRefspecTemplateConstant          = "+refs/heads/%s:refs/remotes/%s/%s"
	pushRefspecTemplateConstant                 = "HEAD:refs/heads/%s"
	remoteTrackingReferenceTemplateConstant     = "%s/%s"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
	lsRemoteNoMatchingReferenceExitCode         = 2
	porcelainStatusCodeLengthConstant           = 2
	porcelainPathOffsetConstant                 = 3
	porcelainRenameSeparatorConstant            = " -> "
	porcelainQuoteConstant                      = "\""
	statusLineSeparatorConstant                 = "\n"
)

// ErrGitExecutorNotConfigured indicates the repository manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// ErrRepositoryPathRequired indicates an operation was requested without a repository path.
var ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessageConstant)

// ErrRemoteNameRequired indicates an operation was requested without a remote name.
var ErrRemoteNameRequired = errors.New(remoteNameRequiredMessageConstant)

// ErrBranchNameRequired indicates an operation was requested without a branch name.
var ErrBranchNameRequired = errors.New(branchNameRequiredMessageConstant)

// ErrPathsRequired indicates a path-scoped operation was requested without paths.
var ErrPathsRequired = errors.New(pathsRequiredMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// StatusEntry is a single line of `git status --porcelain` output.
type StatusEntry struct {
	Code string
	// Path is relative to the repository root.
	Path string
}

// RepositoryManager exposes repository-level git operations.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// RemoteTrackingReference returns the remote-tracking name of branch, e.g. origin/main.
func RemoteTrackingReference(remoteName string, branchName string) string {
	return fmt.Sprintf(remoteTrackingReferenceTemplateConstant, remoteName, branchName)
}

// FetchAllBranches refreshes every remote-tracking branch of remoteName and prunes deleted ones.
func (manager *RepositoryManager) FetchAllBranches(executionContext context.Context, repositoryPath string, remoteName string) error {
	if validationError := requireValues(repositoryPath, remoteName); validationError != nil {
		return validationError
	}
	_, executionError := manager.executeRemote(executionContext, execshell.CommandDetails{
		Arguments: []string{
			gitFetchSubcommandConstant,
			gitFetchPruneFlagConstant,
			remoteName,
			fmt.Sprintf(fetchAllBranchesRefspecTemplateConstant, remoteName),
		},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// FetchBranch refreshes the remote-tracking reference of a single branch.
func (manager *RepositoryManager) FetchBranch(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	if validationError := requireValues(repositoryPath, remoteName); validationError != nil {
		return validationError
	}
	if len(strings.TrimSpace(branchName)) == 0 {
		return ErrBranchNameRequired
	}
	_, executionError := manager.executeRemote(executionContext, execshell.CommandDetails{
		Arguments: []string{
			gitFetchSubcommandConstant,
			remoteName,
			fmt.Sprintf(fetchBranchRefspecTemplateConstant, branchName, remoteName, branchName),
		},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// RemoteBranchExists reports whether branchName exists on remoteName.
// The "no matching reference" exit code of ls-remote is a negative answer, not a failure.
func (manager *RepositoryManager) RemoteBranchExists(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (bool, error) {
	if validationError := requireValues(repositoryPath, remoteName); validationError != nil {
		return false, validationError
	}
	if len(strings.TrimSpace(branchName)) == 0 {
		return false, ErrBranchNameRequired
	}

	details := execshell.CommandDetails{
		Arguments: []string{
			gitLSRemoteSubcommandConstant,
			gitExitCodeFlagConstant,
			gitHeadsFlagConstant,
			remoteName,
			gitBranchReferencePrefixConstant + branchName,
		},
		WorkingDirectory: repositoryPath,
		IgnoreFailure:    true,
	}
	executionResult, executionError := manager.executeRemote(executionContext, details)
	if executionError != nil {
		return false, executionError
	}

	switch executionResult.ExitCode {
	case 0:
		return true, nil
	case lsRemoteNoMatchingReferenceExitCode:
		return false, nil
	default:
		return false, execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details},
			Result:  executionResult,
		}
	}
}

// CheckoutBranch creates branchName at startPoint, or resets it there when it already exists locally.
// Local modifications are discarded so a tree left dirty by an interrupted run never blocks the switch.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	if len(strings.TrimSpace(branchName)) == 0 {
		return ErrBranchNameRequired
	}
	arguments := []string{gitCheckoutSubcommandConstant, gitForceFlagConstant, gitCreateOrResetBranchFlagConstant, branchName}
	if len(strings.TrimSpace(startPoint)) > 0 {
		arguments = append(arguments, startPoint)
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// ResetHard moves the current branch to target, discarding index and working tree changes.
func (manager *RepositoryManager) ResetHard(executionContext context.Context, repositoryPath string, target string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitResetSubcommandConstant, gitHardFlagConstant, target},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// Status lists the porcelain status of the given pathspecs, including untracked files.
func (manager *RepositoryManager) Status(executionContext context.Context, repositoryPath string, pathspecs []string) ([]StatusEntry, error) {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return nil, ErrRepositoryPathRequired
	}
	if len(pathspecs) == 0 {
		return nil, ErrPathsRequired
	}

	arguments := []string{gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitUntrackedFilesAllFlagConstant, gitPathspecSeparatorConstant}
	arguments = append(arguments, pathspecs...)
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return nil, executionError
	}
	return parsePorcelainStatus(executionResult.StandardOutput), nil
}

// StageRepositoryPaths stages exactly the provided repository-root relative paths.
func (manager *RepositoryManager) StageRepositoryPaths(executionContext context.Context, repositoryPath string, paths []string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	if len(paths) == 0 {
		return ErrPathsRequired
	}

	arguments := []string{gitAddSubcommandConstant, gitPathspecSeparatorConstant}
	for _, path := range paths {
		arguments = append(arguments, gitTopPathspecPrefixConstant+path)
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// Commit records the staged changes with message.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitMessageFlagConstant, message},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// PushHead pushes HEAD to branchName on remoteName, optionally overwriting the remote branch.
func (manager *RepositoryManager) PushHead(executionContext context.Context, repositoryPath string, remoteName string, branchName string, force bool) error {
	if validationError := requireValues(repositoryPath, remoteName); validationError != nil {
		return validationError
	}
	if len(strings.TrimSpace(branchName)) == 0 {
		return ErrBranchNameRequired
	}

	arguments := []string{gitPushSubcommandConstant}
	if force {
		arguments = append(arguments, gitForceFlagConstant)
	}
	arguments = append(arguments, remoteName, fmt.Sprintf(pushRefspecTemplateConstant, branchName))
	_, executionError := manager.executeRemote(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// Rebase replays the current branch onto upstream, stashing unrelated working tree changes around it.
// A conflicting rebase is aborted before the error is returned.
func (manager *RepositoryManager) Rebase(executionContext context.Context, repositoryPath string, upstream string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	_, rebaseError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRebaseSubcommandConstant, gitAutostashFlagConstant, upstream},
		WorkingDirectory: repositoryPath,
	})
	if rebaseError == nil {
		return nil
	}
	_, _ = manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRebaseSubcommandConstant, gitAbortFlagConstant},
		WorkingDirectory: repositoryPath,
		IgnoreFailure:    true,
	})
	return rebaseError
}

// SetConfigValue writes a repository-local configuration value.
func (manager *RepositoryManager) SetConfigValue(executionContext context.Context, repositoryPath string, key string, value string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitConfigSubcommandConstant, key, value},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// GetRemoteURL returns the configured URL of remoteName.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	if validationError := requireValues(repositoryPath, remoteName); validationError != nil {
		return "", validationError
	}
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitGetURLSubcommandConstant, remoteName},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// HeadCommit returns the object name of HEAD.
func (manager *RepositoryManager) HeadCommit(executionContext context.Context, repositoryPath string) (string, error) {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return "", ErrRepositoryPathRequired
	}
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// RepositoryPrefix returns the path of repositoryPath relative to the repository root,
// with a trailing slash, or an empty string at the root.
func (manager *RepositoryManager) RepositoryPrefix(executionContext context.Context, repositoryPath string) (string, error) {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return "", ErrRepositoryPathRequired
	}
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitShowPrefixFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

func (manager *RepositoryManager) executeRemote(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	if details.EnvironmentVariables == nil {
		details.EnvironmentVariables = map[string]string{}
	}
	details.EnvironmentVariables[gitTerminalPromptEnvironmentNameConstant] = gitTerminalPromptEnvironmentDisableConstant
	return manager.executor.ExecuteGit(executionContext, details)
}

func requireValues(repositoryPath string, remoteName string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	if len(strings.TrimSpace(remoteName)) == 0 {
		return ErrRemoteNameRequired
	}
	return nil
}

func parsePorcelainStatus(output string) []StatusEntry {
	entries := make([]StatusEntry, 0)
	for _, line := range strings.Split(output, statusLineSeparatorConstant) {
		line = strings.TrimRight(line, "\r")
		if len(line) <= porcelainPathOffsetConstant {
			continue
		}
		path := line[porcelainPathOffsetConstant:]
		if renameIndex := strings.Index(path, porcelainRenameSeparatorConstant); renameIndex != -1 {
			path = path[renameIndex+len(porcelainRenameSeparatorConstant):]
		}
		path = strings.TrimSuffix(strings.TrimPrefix(path, porcelainQuoteConstant), porcelainQuoteConstant)
		entries = append(entries, StatusEntry{
			Code: strings.TrimSpace(line[:porcelainStatusCodeLengthConstant]),
			Path: path,
		})
	}
	return entries
}

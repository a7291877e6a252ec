package gitrepo_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/depsupdate/internal/execshell"
	"github.com/temirov/depsupdate/internal/gitrepo"
)

func runGitCommand(testInstance *testing.T, directory string, arguments ...string) string {
	testInstance.Helper()
	command := exec.Command("git", arguments...)
	command.Dir = directory
	output, runError := command.CombinedOutput()
	require.NoError(testInstance, runError, string(output))
	return strings.TrimSpace(string(output))
}

func writeRepositoryFile(testInstance *testing.T, filePath string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(testInstance, os.WriteFile(filePath, []byte(content), 0o644))
}

func newOperatingSystemRepositoryManager(testInstance *testing.T) *gitrepo.RepositoryManager {
	testInstance.Helper()
	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner())
	require.NoError(testInstance, executorError)
	manager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)
	return manager
}

func TestRepositoryManagerRebaseKeepsUnrelatedWorkingTreeChanges(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("git"); lookupError != nil {
		testInstance.Skip("git is not installed")
	}

	rootDirectory := testInstance.TempDir()
	globalConfigurationPath := filepath.Join(rootDirectory, "gitconfig")
	writeRepositoryFile(testInstance, globalConfigurationPath, "[user]\n\tname = Seed\n\temail = seed@example.com\n[init]\n\tdefaultBranch = main\n")
	testInstance.Setenv("GIT_CONFIG_GLOBAL", globalConfigurationPath)
	testInstance.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	remotePath := filepath.Join(rootDirectory, "remote.git")
	runGitCommand(testInstance, rootDirectory, "init", "--bare", remotePath)
	runGitCommand(testInstance, remotePath, "symbolic-ref", "HEAD", "refs/heads/main")

	upstreamPath := filepath.Join(rootDirectory, "upstream")
	require.NoError(testInstance, os.MkdirAll(upstreamPath, 0o755))
	runGitCommand(testInstance, upstreamPath, "init")
	runGitCommand(testInstance, upstreamPath, "checkout", "-B", "main")
	writeRepositoryFile(testInstance, filepath.Join(upstreamPath, "notes.txt"), "notes\n")
	writeRepositoryFile(testInstance, filepath.Join(upstreamPath, "pkg", "package.json"), "{\"version\":\"1.0.0\"}\n")
	runGitCommand(testInstance, upstreamPath, "add", "--all")
	runGitCommand(testInstance, upstreamPath, "commit", "-m", "initial")
	runGitCommand(testInstance, upstreamPath, "remote", "add", "origin", remotePath)
	runGitCommand(testInstance, upstreamPath, "push", "origin", "main")

	workspacePath := filepath.Join(rootDirectory, "workspace")
	runGitCommand(testInstance, rootDirectory, "clone", remotePath, workspacePath)
	runGitCommand(testInstance, workspacePath, "checkout", "-b", "deps/update-1")
	writeRepositoryFile(testInstance, filepath.Join(workspacePath, "pkg", "package.json"), "{\"version\":\"2.0.0\"}\n")
	runGitCommand(testInstance, workspacePath, "commit", "-am", "chore: update dependencies")

	writeRepositoryFile(testInstance, filepath.Join(upstreamPath, "CHANGELOG.md"), "base moved\n")
	runGitCommand(testInstance, upstreamPath, "add", "CHANGELOG.md")
	runGitCommand(testInstance, upstreamPath, "commit", "-m", "base moved")
	runGitCommand(testInstance, upstreamPath, "push", "origin", "main")

	runGitCommand(testInstance, workspacePath, "fetch", "origin")
	writeRepositoryFile(testInstance, filepath.Join(workspacePath, "notes.txt"), "local noise\n")

	manager := newOperatingSystemRepositoryManager(testInstance)
	require.NoError(testInstance, manager.Rebase(context.Background(), workspacePath, "origin/main"))

	require.Equal(testInstance, runGitCommand(testInstance, workspacePath, "rev-parse", "origin/main"), runGitCommand(testInstance, workspacePath, "rev-parse", "HEAD^"))
	require.Equal(testInstance, "chore: update dependencies", runGitCommand(testInstance, workspacePath, "log", "-1", "--format=%s"))
	noteContent, readError := os.ReadFile(filepath.Join(workspacePath, "notes.txt"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "local noise\n", string(noteContent))
}

func TestRepositoryManagerCheckoutDiscardsLocalModifications(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("git"); lookupError != nil {
		testInstance.Skip("git is not installed")
	}

	rootDirectory := testInstance.TempDir()
	globalConfigurationPath := filepath.Join(rootDirectory, "gitconfig")
	writeRepositoryFile(testInstance, globalConfigurationPath, "[user]\n\tname = Seed\n\temail = seed@example.com\n[init]\n\tdefaultBranch = main\n")
	testInstance.Setenv("GIT_CONFIG_GLOBAL", globalConfigurationPath)
	testInstance.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	repositoryPath := filepath.Join(rootDirectory, "repository")
	require.NoError(testInstance, os.MkdirAll(repositoryPath, 0o755))
	runGitCommand(testInstance, repositoryPath, "init")
	runGitCommand(testInstance, repositoryPath, "checkout", "-B", "main")
	writeRepositoryFile(testInstance, filepath.Join(repositoryPath, "package.json"), "{\"version\":\"1.0.0\"}\n")
	runGitCommand(testInstance, repositoryPath, "add", "--all")
	runGitCommand(testInstance, repositoryPath, "commit", "-m", "initial")
	runGitCommand(testInstance, repositoryPath, "checkout", "-b", "deps/update-1")
	writeRepositoryFile(testInstance, filepath.Join(repositoryPath, "package.json"), "{\"version\":\"2.0.0\"}\n")
	runGitCommand(testInstance, repositoryPath, "commit", "-am", "chore: update dependencies")
	runGitCommand(testInstance, repositoryPath, "checkout", "main")
	writeRepositoryFile(testInstance, filepath.Join(repositoryPath, "package.json"), "{\"version\":\"3.0.0\"}\n")

	manager := newOperatingSystemRepositoryManager(testInstance)
	require.NoError(testInstance, manager.CheckoutBranch(context.Background(), repositoryPath, "deps/update-1", "deps/update-1"))

	require.Equal(testInstance, "deps/update-1", runGitCommand(testInstance, repositoryPath, "rev-parse", "--abbrev-ref", "HEAD"))
	require.Empty(testInstance, runGitCommand(testInstance, repositoryPath, "status", "--porcelain"))
}

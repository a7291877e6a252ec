package workflow

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/depsupdate/internal/actions"
	"github.com/temirov/depsupdate/internal/githubauth"
)

const (
	commandUseConstant                 = "update"
	commandShortDescriptionConstant    = "Update dependencies and open a pull request with the result"
	commandLongDescriptionConstant     = "update resets the head branch from the base branch, runs the update command, and when the manifest files change commits them, pushes the head branch, and opens a pull request against the base branch."
	unexpectedArgumentsMessageConstant = "update does not accept positional arguments"
	flagBaseBranchUsageConstant        = "Branch the head branch is reset from and the pull request targets"
	flagHeadBranchUsageConstant        = "Branch that receives the dependency update commit"
	flagGitHubTokenUsageConstant       = "GitHub token used to open the pull request"
	flagWorkingDirectoryUsageConstant  = "Directory containing the package manifest"
	flagDebugUsageConstant             = "Enable debug logging"
	flagRepositoryUsageConstant        = "Repository in owner/name form (defaults to GITHUB_REPOSITORY or the remote URL)"
	flagRemoteUsageConstant            = "Git remote to fetch from and push to"
	flagUpdateCommandUsageConstant     = "Command that updates the dependencies"
	flagManifestFilesUsageConstant     = "Manifest and lock file names or patterns, relative to the working directory"
	flagPushStrategyUsageConstant      = "Push strategy: force or rebase"
	flagPushAttemptsUsageConstant      = "Maximum number of push attempts"
	flagPushRetryDelayUsageConstant    = "Base delay between push attempts, multiplied by the attempt number"
	flagCommitMessageUsageConstant     = "Commit message for the dependency update"
	flagPullRequestTitleUsageConstant  = "Pull request title"
	flagPullRequestBodyUsageConstant   = "Pull request body"
	flagGitUserNameUsageConstant       = "Git author and committer name"
	flagGitUserEmailUsageConstant      = "Git author and committer email"
	flagCommandTimeoutUsageConstant    = "Timeout applied to each external command (0 disables)"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the loaded update configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the update command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	// Runtime defaults to the process standard output and environment.
	Runtime *actions.Runtime
	// ServiceBuilder defaults to git and the GitHub CLI executed through os/exec.
	ServiceBuilder     ServiceBuilder
	WorkspaceDirectory string
}

// Build constructs the update command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(BaseBranchKey, "", flagBaseBranchUsageConstant)
	command.Flags().String(HeadBranchKey, "", flagHeadBranchUsageConstant)
	command.Flags().String(GitHubTokenKey, "", flagGitHubTokenUsageConstant)
	command.Flags().String(WorkingDirectoryKey, "", flagWorkingDirectoryUsageConstant)
	command.Flags().Bool(DebugKey, false, flagDebugUsageConstant)
	command.Flags().String(RepositoryKey, "", flagRepositoryUsageConstant)
	command.Flags().String(RemoteKey, "", flagRemoteUsageConstant)
	command.Flags().String(UpdateCommandKey, "", flagUpdateCommandUsageConstant)
	command.Flags().StringSlice(ManifestFilesKey, nil, flagManifestFilesUsageConstant)
	command.Flags().String(PushStrategyKey, "", flagPushStrategyUsageConstant)
	command.Flags().Int(PushAttemptsKey, 0, flagPushAttemptsUsageConstant)
	command.Flags().Duration(PushRetryDelayKey, 0, flagPushRetryDelayUsageConstant)
	command.Flags().String(CommitMessageKey, "", flagCommitMessageUsageConstant)
	command.Flags().String(PullRequestTitleKey, "", flagPullRequestTitleUsageConstant)
	command.Flags().String(PullRequestBodyKey, "", flagPullRequestBodyUsageConstant)
	command.Flags().String(GitUserNameKey, "", flagGitUserNameUsageConstant)
	command.Flags().String(GitUserEmailKey, "", flagGitUserEmailUsageConstant)
	command.Flags().Duration(CommandTimeoutKey, 0, flagCommandTimeoutUsageConstant)

	return command, nil
}

// ApplyFlagOverrides copies explicitly set update flags onto configuration.
func ApplyFlagOverrides(command *cobra.Command, configuration *Configuration) {
	if command == nil || configuration == nil {
		return
	}
	flagSet := command.Flags()

	stringTargets := map[string]*string{
		BaseBranchKey:       &configuration.BaseBranch,
		HeadBranchKey:       &configuration.HeadBranch,
		GitHubTokenKey:      &configuration.GitHubToken,
		WorkingDirectoryKey: &configuration.WorkingDirectory,
		RepositoryKey:       &configuration.Repository,
		RemoteKey:           &configuration.RemoteName,
		UpdateCommandKey:    &configuration.UpdateCommand,
		PushStrategyKey:     &configuration.PushStrategy,
		CommitMessageKey:    &configuration.CommitMessage,
		PullRequestTitleKey: &configuration.PullRequestTitle,
		PullRequestBodyKey:  &configuration.PullRequestBody,
		GitUserNameKey:      &configuration.GitUserName,
		GitUserEmailKey:     &configuration.GitUserEmail,
	}
	for flagName, target := range stringTargets {
		if flagSet.Lookup(flagName) == nil || !flagSet.Changed(flagName) {
			continue
		}
		if flagValue, flagError := flagSet.GetString(flagName); flagError == nil {
			*target = flagValue
		}
	}

	if flagSet.Lookup(DebugKey) != nil && flagSet.Changed(DebugKey) {
		if debugValue, flagError := flagSet.GetBool(DebugKey); flagError == nil {
			configuration.Debug = debugValue
		}
	}
	if flagSet.Lookup(ManifestFilesKey) != nil && flagSet.Changed(ManifestFilesKey) {
		if manifestFiles, flagError := flagSet.GetStringSlice(ManifestFilesKey); flagError == nil {
			configuration.ManifestFiles = manifestFiles
		}
	}
	if flagSet.Lookup(PushAttemptsKey) != nil && flagSet.Changed(PushAttemptsKey) {
		if pushAttempts, flagError := flagSet.GetInt(PushAttemptsKey); flagError == nil {
			configuration.PushAttempts = pushAttempts
		}
	}

	durationTargets := map[string]*time.Duration{
		PushRetryDelayKey: &configuration.PushRetryDelay,
		CommandTimeoutKey: &configuration.CommandTimeout,
	}
	for flagName, target := range durationTargets {
		if flagSet.Lookup(flagName) == nil || !flagSet.Changed(flagName) {
			continue
		}
		if flagValue, flagError := flagSet.GetDuration(flagName); flagError == nil {
			*target = flagValue
		}
	}
}

// Secrets lists every credential value the run may use, for masking.
func Secrets(configuration Configuration, lookupEnvironment EnvironmentLookup) []string {
	secrets := make([]string, 0, 2)
	if trimmed := strings.TrimSpace(configuration.GitHubToken); len(trimmed) > 0 {
		secrets = append(secrets, trimmed)
	}
	token, tokenError := githubauth.Resolve("", githubauth.EnvironmentLookup(lookupEnvironment))
	if tokenError == nil && token.Value != strings.TrimSpace(configuration.GitHubToken) {
		secrets = append(secrets, token.Value)
	}
	return secrets
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.resolveConfiguration()
	ApplyFlagOverrides(command, &configuration)

	logger := builder.resolveLogger()
	runtime := builder.resolveRuntime(command)
	for _, secret := range Secrets(configuration, os.LookupEnv) {
		runtime.AddMask(secret)
	}

	serviceBuilder := builder.ServiceBuilder
	if serviceBuilder == nil {
		serviceBuilder = NewServiceBuilder(nil, nil)
	}

	executor, executorError := NewExecutor(Dependencies{
		Logger:             logger,
		BuildServices:      serviceBuilder,
		Outputs:            runtime,
		WorkspaceDirectory: builder.WorkspaceDirectory,
	})
	if executorError != nil {
		return executorError
	}

	outcome, executionError := executor.Execute(command.Context(), configuration)
	if !runtime.InActions() {
		if reportError := WriteReport(command.OutOrStdout(), outcome); reportError != nil && executionError == nil {
			return reportError
		}
	}
	if executionError != nil {
		runtime.Error(executionError.Error())
		return executionError
	}
	return nil
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveRuntime(command *cobra.Command) *actions.Runtime {
	if builder.Runtime != nil {
		return builder.Runtime
	}
	return actions.NewRuntime(command.OutOrStdout(), nil, actions.WithFallbackOutput(command.ErrOrStderr()))
}

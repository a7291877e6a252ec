package workflow

import (
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/temirov/depsupdate/internal/publish"
	"github.com/temirov/depsupdate/internal/updates"
	"github.com/temirov/depsupdate/internal/validation"
)

// Configuration keys as they appear in configuration files, flags, and INPUT_ environment variables.
const (
	BaseBranchKey       = "base-branch"
	HeadBranchKey       = "head-branch"
	GitHubTokenKey      = "gh-token"
	WorkingDirectoryKey = "working-directory"
	DebugKey            = "debug"
	RepositoryKey       = "repository"
	RemoteKey           = "remote"
	UpdateCommandKey    = "update-command"
	ManifestFilesKey    = "manifest-files"
	CommitMessageKey    = "commit-message"
	PullRequestTitleKey = "pr-title"
	PullRequestBodyKey  = "pr-body"
	GitUserNameKey      = "git-user-name"
	GitUserEmailKey     = "git-user-email"
	PushStrategyKey     = "push-strategy"
	PushAttemptsKey     = "push-attempts"
	PushRetryDelayKey   = "push-retry-delay"
	CommandTimeoutKey   = "command-timeout"
)

const (
	defaultRemoteNameConstant       = "origin"
	defaultUpdateCommandConstant    = "npm update"
	defaultCommitMessageConstant    = "chore: update dependencies"
	defaultPullRequestTitleConstant = "chore: update dependencies"
	defaultPullRequestBodyConstant  = "Automated dependency update. This branch is reset from the base branch on every run."
	defaultGitUserNameConstant      = "github-actions[bot]"
	defaultGitUserEmailConstant     = "41898282+github-actions[bot]@users.noreply.github.com"
	defaultPushAttemptsConstant     = 3
	defaultPushRetryDelayConstant   = 2 * time.Second
	defaultCommandTimeoutConstant   = 10 * time.Minute
)

var defaultManifestFiles = []string{"package.json", "package-lock.json"}

// Configuration captures every input of a dependency update run.
type Configuration struct {
	BaseBranch       string        `mapstructure:"base-branch"`
	HeadBranch       string        `mapstructure:"head-branch"`
	GitHubToken      string        `mapstructure:"gh-token"`
	WorkingDirectory string        `mapstructure:"working-directory"`
	Debug            bool          `mapstructure:"debug"`
	Repository       string        `mapstructure:"repository"`
	RemoteName       string        `mapstructure:"remote"`
	UpdateCommand    string        `mapstructure:"update-command"`
	ManifestFiles    []string      `mapstructure:"manifest-files"`
	CommitMessage    string        `mapstructure:"commit-message"`
	PullRequestTitle string        `mapstructure:"pr-title"`
	PullRequestBody  string        `mapstructure:"pr-body"`
	GitUserName      string        `mapstructure:"git-user-name"`
	GitUserEmail     string        `mapstructure:"git-user-email"`
	PushStrategy     string        `mapstructure:"push-strategy"`
	PushAttempts     int           `mapstructure:"push-attempts"`
	PushRetryDelay   time.Duration `mapstructure:"push-retry-delay"`
	CommandTimeout   time.Duration `mapstructure:"command-timeout"`
}

// DefaultConfiguration provides the values used when an input is not supplied.
func DefaultConfiguration() Configuration {
	return Configuration{
		RemoteName:       defaultRemoteNameConstant,
		UpdateCommand:    defaultUpdateCommandConstant,
		ManifestFiles:    append([]string{}, defaultManifestFiles...),
		CommitMessage:    defaultCommitMessageConstant,
		PullRequestTitle: defaultPullRequestTitleConstant,
		PullRequestBody:  defaultPullRequestBodyConstant,
		GitUserName:      defaultGitUserNameConstant,
		GitUserEmail:     defaultGitUserEmailConstant,
		PushStrategy:     string(publish.PushStrategyForce),
		PushAttempts:     defaultPushAttemptsConstant,
		PushRetryDelay:   defaultPushRetryDelayConstant,
		CommandTimeout:   defaultCommandTimeoutConstant,
	}
}

// DefaultConfigurationValues returns the defaults keyed for the configuration loader. Every key is present so
// that each one can be overridden from the environment.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		BaseBranchKey:       "",
		HeadBranchKey:       "",
		GitHubTokenKey:      "",
		WorkingDirectoryKey: "",
		DebugKey:            false,
		RepositoryKey:       "",
		RemoteKey:           defaults.RemoteName,
		UpdateCommandKey:    defaults.UpdateCommand,
		ManifestFilesKey:    defaults.ManifestFiles,
		CommitMessageKey:    defaults.CommitMessage,
		PullRequestTitleKey: defaults.PullRequestTitle,
		PullRequestBodyKey:  defaults.PullRequestBody,
		GitUserNameKey:      defaults.GitUserName,
		GitUserEmailKey:     defaults.GitUserEmail,
		PushStrategyKey:     defaults.PushStrategy,
		PushAttemptsKey:     defaults.PushAttempts,
		PushRetryDelayKey:   defaults.PushRetryDelay.String(),
		CommandTimeoutKey:   defaults.CommandTimeout.String(),
	}
}

// sanitize trims values and fills blanks with defaults. Validated fields are only trimmed.
func (configuration Configuration) sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.BaseBranch = strings.TrimSpace(configuration.BaseBranch)
	sanitized.HeadBranch = strings.TrimSpace(configuration.HeadBranch)
	sanitized.GitHubToken = strings.TrimSpace(configuration.GitHubToken)
	sanitized.WorkingDirectory = strings.TrimSpace(configuration.WorkingDirectory)
	sanitized.Repository = strings.TrimSpace(configuration.Repository)
	sanitized.RemoteName = valueOrDefault(configuration.RemoteName, defaults.RemoteName)
	sanitized.UpdateCommand = valueOrDefault(configuration.UpdateCommand, defaults.UpdateCommand)
	sanitized.CommitMessage = valueOrDefault(configuration.CommitMessage, defaults.CommitMessage)
	sanitized.PullRequestTitle = valueOrDefault(configuration.PullRequestTitle, defaults.PullRequestTitle)
	sanitized.PullRequestBody = valueOrDefault(configuration.PullRequestBody, defaults.PullRequestBody)
	sanitized.GitUserName = valueOrDefault(configuration.GitUserName, defaults.GitUserName)
	sanitized.GitUserEmail = valueOrDefault(configuration.GitUserEmail, defaults.GitUserEmail)
	sanitized.PushStrategy = valueOrDefault(configuration.PushStrategy, defaults.PushStrategy)

	sanitized.ManifestFiles = sanitizeList(configuration.ManifestFiles)
	if len(sanitized.ManifestFiles) == 0 {
		sanitized.ManifestFiles = defaults.ManifestFiles
	}
	if sanitized.PushAttempts < 1 {
		sanitized.PushAttempts = defaults.PushAttempts
	}
	if sanitized.PushRetryDelay < 0 {
		sanitized.PushRetryDelay = 0
	}
	if sanitized.CommandTimeout < 0 {
		sanitized.CommandTimeout = 0
	}

	return sanitized
}

// validate rejects configurations that must not reach any external command.
func (configuration Configuration) validate() error {
	validationError := validation.Validate(validation.Inputs{
		BaseBranch:       configuration.BaseBranch,
		HeadBranch:       configuration.HeadBranch,
		WorkingDirectory: configuration.WorkingDirectory,
	})
	if validationError != nil {
		return validationError
	}

	if _, strategyError := publish.ParsePushStrategy(configuration.PushStrategy); strategyError != nil {
		return strategyError
	}

	for _, manifestPattern := range configuration.ManifestFiles {
		if !doublestar.ValidatePattern(manifestPattern) {
			return updates.InvalidManifestPatternError{Pattern: manifestPattern}
		}
	}

	return nil
}

func valueOrDefault(value string, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return defaultValue
	}
	return trimmed
}

func sanitizeList(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for _, candidate := range raw {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}

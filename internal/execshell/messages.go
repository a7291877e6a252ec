package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
	pathspecSeparatorConstant               = "--"
)

const (
	gitFetchSubcommandNameConstant    = "fetch"
	gitLSRemoteSubcommandNameConstant = "ls-remote"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitResetSubcommandNameConstant    = "reset"
	gitStatusSubcommandNameConstant   = "status"
	gitAddSubcommandNameConstant      = "add"
	gitCommitSubcommandNameConstant   = "commit"
	gitPushSubcommandNameConstant     = "push"
	gitRebaseSubcommandNameConstant   = "rebase"
	gitConfigSubcommandNameConstant   = "config"
	gitMessageFlagConstant            = "-m"
	gitForceFlagConstant              = "--force"
	gitCreateOrResetFlagConstant      = "-B"
	githubAPISubcommandNameConstant   = "api"
	githubMethodFlagConstant          = "-X"
	githubDefaultMethodConstant       = "GET"
)

const (
	gitFetchStartTemplateConstant          = "Fetching %s in %s"
	gitFetchSuccessTemplateConstant        = "Fetched %s in %s"
	gitLSRemoteStartTemplateConstant       = "Checking %s for %s in %s"
	gitLSRemoteSuccessTemplateConstant     = "Found %s on %s"
	gitLSRemoteMissingTemplateConstant     = "%s not found on %s"
	gitCheckoutStartTemplateConstant       = "Switching %s to branch %s"
	gitCheckoutFromStartTemplateConstant   = "Switching %s to branch %s reset from %s"
	gitCheckoutSuccessTemplateConstant     = "%s now on branch %s"
	gitResetStartTemplateConstant          = "Resetting %s to %s"
	gitResetSuccessTemplateConstant        = "Reset %s to %s"
	gitStatusStartTemplateConstant         = "Reviewing working tree status of %s in %s"
	gitStatusSuccessTemplateConstant       = "Collected working tree status of %s in %s"
	gitAddStartTemplateConstant            = "Staging %s in %s"
	gitAddSuccessTemplateConstant          = "Staged %s in %s"
	gitCommitStartTemplateConstant         = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant       = "Created commit in %s with message %q"
	gitPushStartTemplateConstant           = "Pushing %s to %s from %s"
	gitForcePushStartTemplateConstant      = "Force pushing %s to %s from %s"
	gitPushSuccessTemplateConstant         = "Pushed %s to %s from %s"
	gitRebaseStartTemplateConstant         = "Rebasing %s onto %s"
	gitRebaseSuccessTemplateConstant       = "Rebased %s onto %s"
	gitConfigStartTemplateConstant         = "Setting %s in %s"
	gitConfigSuccessTemplateConstant       = "Set %s in %s"
	gitFailureTemplateConstant             = "%s failed (exit code %d%s)"
	gitExecutionFailureTemplateConstant    = "%s failed: %s"
	githubAPIStartTemplateConstant         = "Calling GitHub API %s %s"
	githubAPISuccessTemplateConstant       = "GitHub API %s %s succeeded"
	githubAPIFailureTemplateConstant       = "GitHub API %s %s failed (exit code %d%s)"
	githubAPIExecutionFailureTemplateConst = "Unable to call GitHub API %s %s: %s"
	lsRemoteMissingExitCodeConstant        = 2
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGitHub:
		return formatter.describeGitHubMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	directory := formatter.describeWorkingDirectory(command)
	subcommandArguments := arguments[1:]

	var startMessage string
	var successMessage string

	switch arguments[0] {
	case gitFetchSubcommandNameConstant:
		remote := formatter.ensureValue(formatter.extractFirstNonFlagArgument(subcommandArguments))
		startMessage = fmt.Sprintf(gitFetchStartTemplateConstant, remote, directory)
		successMessage = fmt.Sprintf(gitFetchSuccessTemplateConstant, remote, directory)
	case gitLSRemoteSubcommandNameConstant:
		nonFlagArguments := formatter.extractNonFlagArguments(subcommandArguments)
		remote := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 0))
		reference := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 1))
		if stage == messageStageFailure && result.ExitCode == lsRemoteMissingExitCodeConstant {
			return fmt.Sprintf(gitLSRemoteMissingTemplateConstant, reference, remote)
		}
		startMessage = fmt.Sprintf(gitLSRemoteStartTemplateConstant, remote, reference, directory)
		successMessage = fmt.Sprintf(gitLSRemoteSuccessTemplateConstant, reference, remote)
	case gitCheckoutSubcommandNameConstant:
		nonFlagArguments := formatter.extractNonFlagArguments(subcommandArguments)
		branch := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 0))
		startMessage = fmt.Sprintf(gitCheckoutStartTemplateConstant, directory, branch)
		if containsArgument(subcommandArguments, gitCreateOrResetFlagConstant) && len(nonFlagArguments) > 1 {
			startMessage = fmt.Sprintf(gitCheckoutFromStartTemplateConstant, directory, branch, nonFlagArguments[1])
		}
		successMessage = fmt.Sprintf(gitCheckoutSuccessTemplateConstant, directory, branch)
	case gitResetSubcommandNameConstant:
		target := formatter.ensureValue(formatter.extractFirstNonFlagArgument(subcommandArguments))
		startMessage = fmt.Sprintf(gitResetStartTemplateConstant, directory, target)
		successMessage = fmt.Sprintf(gitResetSuccessTemplateConstant, directory, target)
	case gitStatusSubcommandNameConstant:
		paths := formatter.ensureValue(strings.Join(formatter.extractPathspecs(subcommandArguments), ", "))
		startMessage = fmt.Sprintf(gitStatusStartTemplateConstant, paths, directory)
		successMessage = fmt.Sprintf(gitStatusSuccessTemplateConstant, paths, directory)
	case gitAddSubcommandNameConstant:
		paths := formatter.ensureValue(strings.Join(formatter.extractPathspecs(subcommandArguments), ", "))
		startMessage = fmt.Sprintf(gitAddStartTemplateConstant, paths, directory)
		successMessage = fmt.Sprintf(gitAddSuccessTemplateConstant, paths, directory)
	case gitCommitSubcommandNameConstant:
		commitMessage := formatter.ensureValue(findFlagValue(subcommandArguments, gitMessageFlagConstant))
		startMessage = fmt.Sprintf(gitCommitStartTemplateConstant, directory, commitMessage)
		successMessage = fmt.Sprintf(gitCommitSuccessTemplateConstant, directory, commitMessage)
	case gitPushSubcommandNameConstant:
		nonFlagArguments := formatter.extractNonFlagArguments(subcommandArguments)
		remote := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 0))
		reference := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 1))
		startMessage = fmt.Sprintf(gitPushStartTemplateConstant, reference, remote, directory)
		if containsArgument(subcommandArguments, gitForceFlagConstant) {
			startMessage = fmt.Sprintf(gitForcePushStartTemplateConstant, reference, remote, directory)
		}
		successMessage = fmt.Sprintf(gitPushSuccessTemplateConstant, reference, remote, directory)
	case gitRebaseSubcommandNameConstant:
		upstream := formatter.ensureValue(formatter.extractFirstNonFlagArgument(subcommandArguments))
		startMessage = fmt.Sprintf(gitRebaseStartTemplateConstant, directory, upstream)
		successMessage = fmt.Sprintf(gitRebaseSuccessTemplateConstant, directory, upstream)
	case gitConfigSubcommandNameConstant:
		key := formatter.ensureValue(formatter.extractFirstNonFlagArgument(subcommandArguments))
		startMessage = fmt.Sprintf(gitConfigStartTemplateConstant, key, directory)
		successMessage = fmt.Sprintf(gitConfigSuccessTemplateConstant, key, directory)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch stage {
	case messageStageStart:
		return startMessage
	case messageStageSuccess:
		return successMessage
	case messageStageFailure:
		return fmt.Sprintf(gitFailureTemplateConstant, startMessage, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitExecutionFailureTemplateConstant, startMessage, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 || arguments[0] != githubAPISubcommandNameConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	endpoint := arguments[1]
	method := findFlagValue(arguments, githubMethodFlagConstant)
	if len(method) == 0 {
		method = githubDefaultMethodConstant
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(githubAPIStartTemplateConstant, method, endpoint)
	case messageStageSuccess:
		return fmt.Sprintf(githubAPISuccessTemplateConstant, method, endpoint)
	case messageStageFailure:
		return fmt.Sprintf(githubAPIFailureTemplateConstant, method, endpoint, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(githubAPIExecutionFailureTemplateConst, method, endpoint, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return commandLabel
	}
	return commandLabel + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	return formatter.ensureValue(strings.TrimSpace(command.Details.WorkingDirectory))
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return value
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return emptyStringConstant
	}
	return arguments[index]
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	return formatter.argumentAtIndex(formatter.extractNonFlagArguments(arguments), 0)
}

// extractNonFlagArguments drops flags, flag values of -m, and anything after "--".
func (formatter CommandMessageFormatter) extractNonFlagArguments(arguments []string) []string {
	nonFlagArguments := make([]string, 0, len(arguments))
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		argument := arguments[argumentIndex]
		if argument == pathspecSeparatorConstant {
			break
		}
		if argument == gitMessageFlagConstant {
			argumentIndex++
			continue
		}
		if strings.HasPrefix(argument, flagPrefixConstant) {
			continue
		}
		nonFlagArguments = append(nonFlagArguments, argument)
	}
	return nonFlagArguments
}

func (formatter CommandMessageFormatter) extractPathspecs(arguments []string) []string {
	for argumentIndex, argument := range arguments {
		if argument == pathspecSeparatorConstant {
			return arguments[argumentIndex+1:]
		}
	}
	return formatter.extractNonFlagArguments(arguments)
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if argument == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex < len(arguments)-1; argumentIndex++ {
		if arguments[argumentIndex] == flag {
			return arguments[argumentIndex+1]
		}
	}
	return emptyStringConstant
}

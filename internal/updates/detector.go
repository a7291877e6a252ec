package updates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/temirov/depsupdate/internal/execshell"
	"github.com/temirov/depsupdate/internal/gitrepo"
)

const (
	commandExecutorMissingMessageConstant = "command executor not configured"
	statusReaderMissingMessageConstant    = "status reader not configured"
	workingDirectoryRequiredMessageConst  = "working directory must be provided"
	updateCommandRequiredMessageConstant  = "update command must be provided"
	manifestFilesRequiredMessageConstant  = "at least one manifest file must be provided"
	updateCommandFailureTemplateConstant  = "failed to run update command %q: %w"
	statusFailureTemplateConstant         = "failed to read manifest status: %w"
	prefixFailureTemplateConstant         = "failed to resolve working directory within repository: %w"
	invalidManifestPatternTemplateConst   = "invalid manifest file pattern %q"
	ignoredStatusEntryMessageConstant     = "Ignoring change outside manifest files"
	logFieldPathConstant                  = "path"
	updateCommandExitedMessageConstant    = "Update command exited with a non-zero code"
	updatesAvailableMessageConstant       = "There are updates available"
	noUpdatesMessageConstant              = "No updates at this time"
	logFieldUpdateCommandConstant         = "update_command"
	logFieldExitCodeConstant              = "exit_code"
	logFieldStandardErrorConstant         = "stderr"
	logFieldChangedFilesConstant          = "changed_files"
)

// ErrCommandExecutorNotConfigured indicates the detector was constructed without a command executor.
var ErrCommandExecutorNotConfigured = errors.New(commandExecutorMissingMessageConstant)

// ErrStatusReaderNotConfigured indicates the detector was constructed without a status reader.
var ErrStatusReaderNotConfigured = errors.New(statusReaderMissingMessageConstant)

// ErrWorkingDirectoryRequired indicates the working directory option was empty.
var ErrWorkingDirectoryRequired = errors.New(workingDirectoryRequiredMessageConst)

// ErrUpdateCommandRequired indicates the update command option was empty.
var ErrUpdateCommandRequired = errors.New(updateCommandRequiredMessageConstant)

// ErrManifestFilesRequired indicates no manifest files were configured.
var ErrManifestFilesRequired = errors.New(manifestFilesRequiredMessageConstant)

// CommandExecutor runs the update command.
type CommandExecutor interface {
	ExecuteCommand(executionContext context.Context, name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// StatusReader reports working tree status scoped to pathspecs.
type StatusReader interface {
	Status(executionContext context.Context, repositoryPath string, pathspecs []string) ([]gitrepo.StatusEntry, error)
	RepositoryPrefix(executionContext context.Context, repositoryPath string) (string, error)
}

// InvalidManifestPatternError reports a manifest file pattern that cannot be matched.
type InvalidManifestPatternError struct {
	Pattern string
}

// Error describes the rejected pattern.
func (patternError InvalidManifestPatternError) Error() string {
	return fmt.Sprintf(invalidManifestPatternTemplateConst, patternError.Pattern)
}

// Dependencies enumerates collaborators required by Detector.
type Dependencies struct {
	CommandExecutor CommandExecutor
	StatusReader    StatusReader
	Logger          *zap.Logger
}

// Options configures a detection run.
type Options struct {
	WorkingDirectory string
	// UpdateCommand is split on whitespace and executed without a shell.
	UpdateCommand string
	// ManifestFiles are file names or doublestar patterns relative to WorkingDirectory.
	ManifestFiles []string
}

// DiffStatus reports whether the manifest family changed.
type DiffStatus struct {
	HasManifestChanges bool
	// ChangedFiles are relative to the repository root.
	ChangedFiles []string
}

// Detector runs the update command and inspects the manifest files.
type Detector struct {
	commandExecutor CommandExecutor
	statusReader    StatusReader
	logger          *zap.Logger
}

// NewDetector constructs a Detector.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	if dependencies.CommandExecutor == nil {
		return nil, ErrCommandExecutorNotConfigured
	}
	if dependencies.StatusReader == nil {
		return nil, ErrStatusReaderNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		commandExecutor: dependencies.CommandExecutor,
		statusReader:    dependencies.StatusReader,
		logger:          logger,
	}, nil
}

// Detect runs the update command and classifies the manifest diff. The update
// command's exit code does not fail detection; only its effect on the manifest files counts.
func (detector *Detector) Detect(executionContext context.Context, options Options) (DiffStatus, error) {
	workingDirectory := strings.TrimSpace(options.WorkingDirectory)
	if len(workingDirectory) == 0 {
		return DiffStatus{}, ErrWorkingDirectoryRequired
	}
	commandParts := strings.Fields(options.UpdateCommand)
	if len(commandParts) == 0 {
		return DiffStatus{}, ErrUpdateCommandRequired
	}
	manifestFiles := normalizeManifestFiles(options.ManifestFiles)
	if len(manifestFiles) == 0 {
		return DiffStatus{}, ErrManifestFilesRequired
	}
	for _, manifestFile := range manifestFiles {
		if !doublestar.ValidatePattern(manifestFile) {
			return DiffStatus{}, InvalidManifestPatternError{Pattern: manifestFile}
		}
	}

	updateResult, updateError := detector.commandExecutor.ExecuteCommand(executionContext, execshell.CommandName(commandParts[0]), execshell.CommandDetails{
		Arguments:        commandParts[1:],
		WorkingDirectory: workingDirectory,
		IgnoreFailure:    true,
	})
	if updateError != nil {
		return DiffStatus{}, fmt.Errorf(updateCommandFailureTemplateConstant, options.UpdateCommand, updateError)
	}
	if updateResult.ExitCode != 0 {
		detector.logger.Warn(
			updateCommandExitedMessageConstant,
			zap.String(logFieldUpdateCommandConstant, options.UpdateCommand),
			zap.Int(logFieldExitCodeConstant, updateResult.ExitCode),
			zap.String(logFieldStandardErrorConstant, strings.TrimSpace(updateResult.StandardError)),
		)
	}

	statusEntries, statusError := detector.statusReader.Status(executionContext, workingDirectory, manifestFiles)
	if statusError != nil {
		return DiffStatus{}, fmt.Errorf(statusFailureTemplateConstant, statusError)
	}

	repositoryPrefix, prefixError := detector.statusReader.RepositoryPrefix(executionContext, workingDirectory)
	if prefixError != nil {
		return DiffStatus{}, fmt.Errorf(prefixFailureTemplateConstant, prefixError)
	}

	changedFiles := make([]string, 0, len(statusEntries))
	for _, statusEntry := range statusEntries {
		if !matchesManifestFile(statusEntry.Path, repositoryPrefix, manifestFiles) {
			detector.logger.Debug(ignoredStatusEntryMessageConstant, zap.String(logFieldPathConstant, statusEntry.Path))
			continue
		}
		changedFiles = append(changedFiles, statusEntry.Path)
	}
	diffStatus := DiffStatus{HasManifestChanges: len(changedFiles) > 0, ChangedFiles: changedFiles}

	if diffStatus.HasManifestChanges {
		detector.logger.Info(updatesAvailableMessageConstant, zap.Strings(logFieldChangedFilesConstant, changedFiles))
	} else {
		detector.logger.Info(noUpdatesMessageConstant)
	}
	return diffStatus, nil
}

func normalizeManifestFiles(manifestFiles []string) []string {
	normalized := make([]string, 0, len(manifestFiles))
	for _, manifestFile := range manifestFiles {
		trimmed := strings.TrimSpace(manifestFile)
		if len(trimmed) > 0 {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// matchesManifestFile reports whether a repository-root relative path is one of
// the manifest files directly under the working directory.
func matchesManifestFile(repositoryRelativePath string, repositoryPrefix string, manifestFiles []string) bool {
	relativePath, insideWorkingDirectory := strings.CutPrefix(repositoryRelativePath, repositoryPrefix)
	if !insideWorkingDirectory {
		return false
	}
	for _, manifestFile := range manifestFiles {
		if matched, _ := doublestar.Match(manifestFile, relativePath); matched {
			return true
		}
	}
	return false
}

package actions

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	githubActionsEnvironmentNameConstant = "GITHUB_ACTIONS"
	githubActionsEnabledValueConstant    = "true"
	githubOutputEnvironmentNameConstant  = "GITHUB_OUTPUT"
	outputNameRequiredMessageConstant    = "output name must be provided"
	outputWriteErrorTemplateConstant     = "failed to write output %q: %w"
	singleLineOutputTemplateConstant     = "%s=%s\n"
	multiLineOutputTemplateConstant      = "%s<<%s\n%s\n%s\n"
	outputDelimiterPrefixConstant        = "ghadelimiter_"
	addMaskCommandTemplateConstant       = "::add-mask::%s\n"
	errorCommandTemplateConstant         = "::error::%s\n"
	outputFilePermissionsConstant        = 0o644
	newlineConstant                      = "\n"
	carriageReturnConstant               = "\r"
)

// ErrOutputNameRequired indicates SetOutput was called without a name.
var ErrOutputNameRequired = errors.New(outputNameRequiredMessageConstant)

var commandDataEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

// EnvironmentLookup reads a single environment variable.
type EnvironmentLookup func(key string) (string, bool)

// RuntimeOption customizes a Runtime.
type RuntimeOption func(*Runtime)

// WithFallbackOutput receives step outputs when $GITHUB_OUTPUT is not set. Standard error is used by default.
func WithFallbackOutput(fallbackOutput io.Writer) RuntimeOption {
	return func(runtime *Runtime) {
		if fallbackOutput != nil {
			runtime.fallbackOutput = fallbackOutput
		}
	}
}

// Runtime writes outputs and workflow commands for the current process.
type Runtime struct {
	standardOutput    io.Writer
	fallbackOutput    io.Writer
	lookupEnvironment EnvironmentLookup
	newDelimiter      func() string
}

// NewRuntime constructs a Runtime. A nil lookup reads the process environment.
func NewRuntime(standardOutput io.Writer, lookupEnvironment EnvironmentLookup, options ...RuntimeOption) *Runtime {
	if standardOutput == nil {
		standardOutput = os.Stdout
	}
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	runtime := &Runtime{
		standardOutput:    standardOutput,
		fallbackOutput:    os.Stderr,
		lookupEnvironment: lookupEnvironment,
		newDelimiter: func() string {
			return outputDelimiterPrefixConstant + uuid.NewString()
		},
	}
	for _, option := range options {
		option(runtime)
	}
	return runtime
}

// InActions reports whether the process runs inside a GitHub Actions job.
func (runtime *Runtime) InActions() bool {
	value, _ := runtime.lookupEnvironment(githubActionsEnvironmentNameConstant)
	return strings.EqualFold(strings.TrimSpace(value), githubActionsEnabledValueConstant)
}

// SetOutput records a step output. Multi-line values use a random heredoc delimiter.
// Without $GITHUB_OUTPUT the record goes to the fallback output, keeping standard output free for reports.
func (runtime *Runtime) SetOutput(name string, value string) error {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return ErrOutputNameRequired
	}

	outputRecord := fmt.Sprintf(singleLineOutputTemplateConstant, trimmedName, value)
	if strings.ContainsAny(value, newlineConstant+carriageReturnConstant) {
		delimiter := runtime.newDelimiter()
		outputRecord = fmt.Sprintf(multiLineOutputTemplateConstant, trimmedName, delimiter, value, delimiter)
	}

	outputFilePath, _ := runtime.lookupEnvironment(githubOutputEnvironmentNameConstant)
	if len(strings.TrimSpace(outputFilePath)) == 0 {
		if _, writeError := io.WriteString(runtime.fallbackOutput, outputRecord); writeError != nil {
			return fmt.Errorf(outputWriteErrorTemplateConstant, trimmedName, writeError)
		}
		return nil
	}

	outputFile, openError := os.OpenFile(outputFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, outputFilePermissionsConstant)
	if openError != nil {
		return fmt.Errorf(outputWriteErrorTemplateConstant, trimmedName, openError)
	}
	_, writeError := io.WriteString(outputFile, outputRecord)
	closeError := outputFile.Close()
	if writeError != nil {
		return fmt.Errorf(outputWriteErrorTemplateConstant, trimmedName, writeError)
	}
	if closeError != nil {
		return fmt.Errorf(outputWriteErrorTemplateConstant, trimmedName, closeError)
	}
	return nil
}

// AddMask asks the runner to hide secret in every subsequent log line.
func (runtime *Runtime) AddMask(secret string) {
	if len(strings.TrimSpace(secret)) == 0 || !runtime.InActions() {
		return
	}
	fmt.Fprintf(runtime.standardOutput, addMaskCommandTemplateConstant, commandDataEscaper.Replace(secret))
}

// Error emits an error annotation for the current step.
func (runtime *Runtime) Error(message string) {
	if !runtime.InActions() {
		return
	}
	fmt.Fprintf(runtime.standardOutput, errorCommandTemplateConstant, commandDataEscaper.Replace(message))
}

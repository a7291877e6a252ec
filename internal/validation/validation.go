package validation

import (
	"fmt"
	"regexp"
)

const (
	branchNamePatternConstant                = `^[a-zA-Z0-9_\-./]+$`
	directoryNamePatternConstant             = `^[a-zA-Z0-9_\-/]+$`
	configurationErrorTemplateConstant       = "%s: %q"
	branchNameRequirementMessageConstant     = "Branch names should only include chars, numbers, hyphens, underscores, dots, and forward slashes"
	directoryNameRequirementMessageConstant  = "Directory names should only include chars, numbers, hyphens, underscores, and forward slashes"
	invalidBaseBranchMessageTemplateConstant = "Invalid base branch name. %s"
	invalidHeadBranchMessageTemplateConstant = "Invalid head branch name. %s"
	invalidDirectoryMessageTemplateConstant  = "Invalid working directory name. %s"

	// FieldBaseBranch names the base branch input.
	FieldBaseBranch = "base-branch"
	// FieldHeadBranch names the head branch input.
	FieldHeadBranch = "head-branch"
	// FieldWorkingDirectory names the working directory input.
	FieldWorkingDirectory = "working-directory"
)

var (
	branchNamePattern    = regexp.MustCompile(branchNamePatternConstant)
	directoryNamePattern = regexp.MustCompile(directoryNamePatternConstant)
)

// ConfigurationError reports an input that failed validation.
type ConfigurationError struct {
	Field   string
	Value   string
	Message string
}

// Error describes the rejected input.
func (configurationError ConfigurationError) Error() string {
	return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Message, configurationError.Value)
}

// Inputs holds the user-controlled values that end up on git command lines.
type Inputs struct {
	BaseBranch       string
	HeadBranch       string
	WorkingDirectory string
}

// ValidateBranchName reports whether name only contains letters, digits, and _-./ characters.
func ValidateBranchName(name string) bool {
	return branchNamePattern.MatchString(name)
}

// ValidateDirectoryName reports whether path only contains letters, digits, and _-/ characters.
func ValidateDirectoryName(path string) bool {
	return directoryNamePattern.MatchString(path)
}

// Validate checks every input and returns a ConfigurationError for the first one rejected.
func Validate(inputs Inputs) error {
	if !ValidateBranchName(inputs.BaseBranch) {
		return ConfigurationError{
			Field:   FieldBaseBranch,
			Value:   inputs.BaseBranch,
			Message: fmt.Sprintf(invalidBaseBranchMessageTemplateConstant, branchNameRequirementMessageConstant),
		}
	}
	if !ValidateBranchName(inputs.HeadBranch) {
		return ConfigurationError{
			Field:   FieldHeadBranch,
			Value:   inputs.HeadBranch,
			Message: fmt.Sprintf(invalidHeadBranchMessageTemplateConstant, branchNameRequirementMessageConstant),
		}
	}
	if !ValidateDirectoryName(inputs.WorkingDirectory) {
		return ConfigurationError{
			Field:   FieldWorkingDirectory,
			Value:   inputs.WorkingDirectory,
			Message: fmt.Sprintf(invalidDirectoryMessageTemplateConstant, directoryNameRequirementMessageConstant),
		}
	}
	return nil
}

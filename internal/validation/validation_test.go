package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depsupdate/internal/validation"
)

func TestValidateBranchName(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "simple", input: "main", expected: true},
		{name: "nested", input: "deps/update-1", expected: true},
		{name: "dots_and_underscores", input: "release_1.2.x", expected: true},
		{name: "empty", input: "", expected: false},
		{name: "shell_injection", input: "main; rm -rf /", expected: false},
		{name: "command_substitution", input: "$(whoami)", expected: false},
		{name: "whitespace", input: "feature branch", expected: false},
		{name: "newline", input: "main\nother", expected: false},
		{name: "backtick", input: "`id`", expected: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, validation.ValidateBranchName(testCase.input))
		})
	}
}

func TestValidateDirectoryName(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "simple", input: "pkg", expected: true},
		{name: "nested", input: "services/web-app", expected: true},
		{name: "root_slash", input: "/", expected: true},
		{name: "current_directory_dot", input: ".", expected: false},
		{name: "parent_traversal", input: "../etc", expected: false},
		{name: "empty", input: "", expected: false},
		{name: "shell_injection", input: "pkg && curl evil", expected: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, validation.ValidateDirectoryName(testCase.input))
		})
	}
}

func TestValidateReportsFirstOffendingField(testInstance *testing.T) {
	testCases := []struct {
		name          string
		inputs        validation.Inputs
		expectedField string
		expectedText  string
	}{
		{
			name:          "valid",
			inputs:        validation.Inputs{BaseBranch: "main", HeadBranch: "deps/update-1", WorkingDirectory: "pkg"},
			expectedField: "",
		},
		{
			name:          "base_branch",
			inputs:        validation.Inputs{BaseBranch: "main; rm -rf /", HeadBranch: "deps", WorkingDirectory: "pkg"},
			expectedField: validation.FieldBaseBranch,
			expectedText:  "Invalid base branch name. Branch names should only include chars, numbers, hyphens, underscores, dots, and forward slashes: \"main; rm -rf /\"",
		},
		{
			name:          "head_branch",
			inputs:        validation.Inputs{BaseBranch: "main", HeadBranch: "", WorkingDirectory: "pkg"},
			expectedField: validation.FieldHeadBranch,
			expectedText:  "Invalid head branch name. Branch names should only include chars, numbers, hyphens, underscores, dots, and forward slashes: \"\"",
		},
		{
			name:          "working_directory",
			inputs:        validation.Inputs{BaseBranch: "main", HeadBranch: "deps", WorkingDirectory: "pkg.v2"},
			expectedField: validation.FieldWorkingDirectory,
			expectedText:  "Invalid working directory name. Directory names should only include chars, numbers, hyphens, underscores, and forward slashes: \"pkg.v2\"",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			validationError := validation.Validate(testCase.inputs)
			if len(testCase.expectedField) == 0 {
				require.NoError(testInstance, validationError)
				return
			}

			var configurationError validation.ConfigurationError
			require.True(testInstance, errors.As(validationError, &configurationError))
			require.Equal(testInstance, testCase.expectedField, configurationError.Field)
			require.Equal(testInstance, testCase.expectedText, configurationError.Error())
		})
	}
}

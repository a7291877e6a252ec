package position

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/depsupdate/internal/gitrepo"
)

const (
	repositoryPathRequiredMessageConstant   = "repository path must be provided"
	remoteNameRequiredMessageConstant       = "remote name must be provided"
	baseBranchRequiredMessageConstant       = "base branch must be provided"
	headBranchRequiredMessageConstant       = "head branch must be provided"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	fetchFailureTemplateConstant            = "failed to fetch %s: %w"
	existenceCheckFailureTemplateConstant   = "failed to check whether branch %q exists on %s: %w"
	checkoutFailureTemplateConstant         = "failed to checkout branch %q: %w"
	resetFailureTemplateConstant            = "failed to reset branch %q to %s: %w"
	headBranchResetMessageConstant          = "Resetting existing head branch to base"
	headBranchCreatedMessageConstant        = "Creating head branch from base"
	logFieldHeadBranchConstant              = "head_branch"
	logFieldBaseReferenceConstant           = "base_reference"
)

// ErrRepositoryPathRequired indicates the repository path option was empty.
var ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessageConstant)

// ErrRemoteNameRequired indicates the remote name option was empty.
var ErrRemoteNameRequired = errors.New(remoteNameRequiredMessageConstant)

// ErrBaseBranchRequired indicates the base branch option was empty.
var ErrBaseBranchRequired = errors.New(baseBranchRequiredMessageConstant)

// ErrHeadBranchRequired indicates the head branch option was empty.
var ErrHeadBranchRequired = errors.New(headBranchRequiredMessageConstant)

// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// RepositoryManager exposes the git operations required to position a branch.
type RepositoryManager interface {
	FetchAllBranches(executionContext context.Context, repositoryPath string, remoteName string) error
	RemoteBranchExists(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (bool, error)
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string, startPoint string) error
	ResetHard(executionContext context.Context, repositoryPath string, target string) error
}

// Dependencies enumerates external collaborators required for positioning.
type Dependencies struct {
	RepositoryManager RepositoryManager
	Logger            *zap.Logger
}

// Options configures a positioning run.
type Options struct {
	RepositoryPath string
	RemoteName     string
	BaseBranch     string
	HeadBranch     string
}

// Result captures the observable outcome of positioning.
type Result struct {
	HeadBranch          string
	BaseReference       string
	HeadExistedOnRemote bool
}

// Service creates or resets the head branch from the remote base branch.
type Service struct {
	repositoryManager RepositoryManager
	logger            *zap.Logger
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repositoryManager: dependencies.RepositoryManager, logger: logger}, nil
}

// Position fetches the remote and leaves the head branch checked out with the
// exact tree of the remote base branch, whether or not the head branch already existed.
func (service *Service) Position(executionContext context.Context, options Options) (Result, error) {
	repositoryPath := strings.TrimSpace(options.RepositoryPath)
	if len(repositoryPath) == 0 {
		return Result{}, ErrRepositoryPathRequired
	}
	remoteName := strings.TrimSpace(options.RemoteName)
	if len(remoteName) == 0 {
		return Result{}, ErrRemoteNameRequired
	}
	baseBranch := strings.TrimSpace(options.BaseBranch)
	if len(baseBranch) == 0 {
		return Result{}, ErrBaseBranchRequired
	}
	headBranch := strings.TrimSpace(options.HeadBranch)
	if len(headBranch) == 0 {
		return Result{}, ErrHeadBranchRequired
	}

	if fetchError := service.repositoryManager.FetchAllBranches(executionContext, repositoryPath, remoteName); fetchError != nil {
		return Result{}, fmt.Errorf(fetchFailureTemplateConstant, remoteName, fetchError)
	}

	headExists, existsError := service.repositoryManager.RemoteBranchExists(executionContext, repositoryPath, remoteName, headBranch)
	if existsError != nil {
		return Result{}, fmt.Errorf(existenceCheckFailureTemplateConstant, headBranch, remoteName, existsError)
	}

	baseReference := gitrepo.RemoteTrackingReference(remoteName, baseBranch)
	result := Result{HeadBranch: headBranch, BaseReference: baseReference, HeadExistedOnRemote: headExists}

	if headExists {
		service.logger.Debug(headBranchResetMessageConstant, zap.String(logFieldHeadBranchConstant, headBranch), zap.String(logFieldBaseReferenceConstant, baseReference))
		headReference := gitrepo.RemoteTrackingReference(remoteName, headBranch)
		if checkoutError := service.repositoryManager.CheckoutBranch(executionContext, repositoryPath, headBranch, headReference); checkoutError != nil {
			return Result{}, fmt.Errorf(checkoutFailureTemplateConstant, headBranch, checkoutError)
		}
		if resetError := service.repositoryManager.ResetHard(executionContext, repositoryPath, baseReference); resetError != nil {
			return Result{}, fmt.Errorf(resetFailureTemplateConstant, headBranch, baseReference, resetError)
		}
		return result, nil
	}

	service.logger.Debug(headBranchCreatedMessageConstant, zap.String(logFieldHeadBranchConstant, headBranch), zap.String(logFieldBaseReferenceConstant, baseReference))
	if checkoutError := service.repositoryManager.CheckoutBranch(executionContext, repositoryPath, headBranch, baseReference); checkoutError != nil {
		return Result{}, fmt.Errorf(checkoutFailureTemplateConstant, headBranch, checkoutError)
	}
	return result, nil
}

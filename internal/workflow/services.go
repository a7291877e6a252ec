package workflow

import (
	"github.com/temirov/depsupdate/internal/branches/position"
	"github.com/temirov/depsupdate/internal/execshell"
	"github.com/temirov/depsupdate/internal/githubcli"
	"github.com/temirov/depsupdate/internal/gitrepo"
	"github.com/temirov/depsupdate/internal/publish"
	"github.com/temirov/depsupdate/internal/updates"
)

// NewServiceBuilder returns a ServiceBuilder backed by git and the GitHub CLI. A nil runner executes
// commands through os/exec; a nil wait sleeps between push attempts.
func NewServiceBuilder(commandRunner execshell.CommandRunner, wait publish.WaitFunc) ServiceBuilder {
	return func(settings ServiceSettings) (Services, error) {
		runner := commandRunner
		if runner == nil {
			runner = execshell.NewOSCommandRunner()
		}

		shellExecutor, executorError := execshell.NewShellExecutor(settings.Logger, runner, execshell.WithCommandTimeout(settings.CommandTimeout))
		if executorError != nil {
			return Services{}, executorError
		}

		repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor)
		if managerError != nil {
			return Services{}, managerError
		}

		gitHubClient, clientError := githubcli.NewClient(
			shellExecutor,
			githubcli.WithAuthenticationToken(settings.GitHubToken),
			githubcli.WithWorkingDirectory(settings.WorkingDirectory),
		)
		if clientError != nil {
			return Services{}, clientError
		}

		positioner, positionerError := position.NewService(position.Dependencies{
			RepositoryManager: repositoryManager,
			Logger:            settings.Logger,
		})
		if positionerError != nil {
			return Services{}, positionerError
		}

		detector, detectorError := updates.NewDetector(updates.Dependencies{
			CommandExecutor: shellExecutor,
			StatusReader:    repositoryManager,
			Logger:          settings.Logger,
		})
		if detectorError != nil {
			return Services{}, detectorError
		}

		publisher, publisherError := publish.NewService(publish.Dependencies{
			RepositoryManager: repositoryManager,
			PullRequestClient: gitHubClient,
			Logger:            settings.Logger,
			Wait:              wait,
		})
		if publisherError != nil {
			return Services{}, publisherError
		}

		return Services{
			Positioner:      positioner,
			Detector:        detector,
			Publisher:       publisher,
			RemoteURLReader: repositoryManager,
		}, nil
	}
}

package workflow

// State names a step of the update run.
type State string

// States of a run in the order they are visited.
const (
	StateStart           State = State("START")
	StateValidateInput   State = State("VALIDATE_INPUT")
	StatePositionBranch  State = State("POSITION_BRANCH")
	StateDetectChanges   State = State("DETECT_CHANGES")
	StateCommit          State = State("COMMIT")
	StatePush            State = State("PUSH")
	StateOpenPullRequest State = State("OPEN_PR")
	StateDone            State = State("DONE")
	StateFailed          State = State("FAILED")
)

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID      string `yaml:"run_id"`
	FinalState State  `yaml:"final_state"`
	// FailedState is the step that failed; empty unless FinalState is FAILED.
	FailedState State `yaml:"failed_state,omitempty"`
	// UpdatesAvailable stays true once changes were detected, even if a later step fails.
	UpdatesAvailable          bool     `yaml:"updates_available"`
	Succeeded                 bool     `yaml:"succeeded"`
	ErrorMessage              string   `yaml:"error,omitempty"`
	ChangedFiles              []string `yaml:"changed_files,omitempty"`
	CommitID                  string   `yaml:"commit,omitempty"`
	PushAttempts              int      `yaml:"push_attempts,omitempty"`
	PullRequestNumber         int      `yaml:"pull_request_number,omitempty"`
	PullRequestURL            string   `yaml:"pull_request_url,omitempty"`
	PullRequestAlreadyExisted bool     `yaml:"pull_request_already_existed,omitempty"`
}

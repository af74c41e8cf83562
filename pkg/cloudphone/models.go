// Package cloudphone holds the wire and domain types shared between the
// orchestrator internals and the HTTP surface: workflow configuration,
// accounts, job records, and the provider's response envelope.
package cloudphone

import "time"

// WorkflowType selects which strategy drives post-login behavior.
type WorkflowType string

const (
	WorkflowWarmup WorkflowType = "warmup"
	WorkflowSetup  WorkflowType = "setup"
	WorkflowPost   WorkflowType = "post"
	WorkflowCustom WorkflowType = "custom"
)

// State is a state-machine state name, shared by the core pre-login
// states and every strategy's post-login states.
type State string

const (
	// Shared pre-login core states (spec §4.6).
	StateInit                State = "INIT"
	StateStartEnv             State = "START_ENV"
	StateConfirmEnvRunning    State = "CONFIRM_ENV_RUNNING"
	StateRestartEnv           State = "RESTART_ENV"
	StateInstallApp           State = "INSTALL_APP"
	StateConfirmAppInstalled State = "CONFIRM_APP_INSTALLED"
	StateLogin                State = "LOGIN"
	StatePollLoginTask        State = "POLL_LOGIN_TASK"
	StateDone                 State = "DONE"
	StateFailed               State = "FAILED"

	// Warmup strategy post-login states.
	StateStartApp    State = "START_APP"
	StateStartWarmup State = "START_WARMUP"
	StatePollWarmup  State = "POLL_WARMUP"

	// Post strategy post-login states.
	StatePreparePost     State = "PREPARE_POST"
	StatePublishPost1     State = "PUBLISH_POST_1"
	StatePollPost1        State = "POLL_POST_1"
	StatePublishPost2     State = "PUBLISH_POST_2"
	StatePollPost2        State = "POLL_POST_2"

	// Setup/Custom task palette states, one submit+poll pair per task.
	StateRenameUsername     State = "RENAME_USERNAME"
	StatePollRenameUsername State = "POLL_RENAME_USERNAME"
	StateEditDisplayName     State = "EDIT_DISPLAY_NAME"
	StatePollEditDisplayName State = "POLL_EDIT_DISPLAY_NAME"
	StateProfilePicture     State = "PROFILE_PICTURE"
	StatePollProfilePicture State = "POLL_PROFILE_PICTURE"
	StateBio                 State = "BIO"
	StatePollBio             State = "POLL_BIO"
	StateSetupPost1          State = "SETUP_POST_1"
	StatePollSetupPost1      State = "POLL_SETUP_POST_1"
	StateSetupPost2          State = "SETUP_POST_2"
	StatePollSetupPost2      State = "POLL_SETUP_POST_2"
	StateHighlight           State = "HIGHLIGHT"
	StatePollHighlight       State = "POLL_HIGHLIGHT"
	StatePrivate             State = "PRIVATE"
	StatePollPrivate         State = "POLL_PRIVATE"
	StateEnable2FA           State = "ENABLE_2FA"
	StatePollEnable2FA       State = "POLL_ENABLE_2FA"
)

// PostType distinguishes the two publishable media shapes.
type PostType string

const (
	PostTypeVideo PostType = "video"
	PostTypeImage PostType = "image"
)

// Post describes one piece of content to publish.
type Post struct {
	Type        PostType `json:"type"`
	Description string   `json:"description"`
	MediaURLs   []string `json:"mediaUrls"`
}

// SetupData carries the profile-configuration fields used by the Setup
// and Custom strategies.
type SetupData struct {
	NewUsername       string `json:"newUsername,omitempty"`
	NewDisplayName    string `json:"newDisplayName,omitempty"`
	Bio               string `json:"bio,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	Posts             []Post `json:"posts,omitempty"`
	HighlightTitle    string `json:"highlightTitle,omitempty"`
	HighlightCoverURL string `json:"highlightCoverUrl,omitempty"`
	// Private and Enable2FA gate the palette's two data-free tasks
	// (spec §4.5 "... → private → 2FA"): run only when requested, since
	// neither task carries any profile data of its own.
	Private   bool `json:"private,omitempty"`
	Enable2FA bool `json:"enable2fa,omitempty"`
}

// Account is one input row: credentials plus optional per-workflow payload.
type Account struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Posts    []Post     `json:"posts,omitempty"`
	Setup    *SetupData `json:"setup,omitempty"`
}

// Platform selects which provider task family a post-login strategy
// submits work against (SPEC_FULL §6: the spec's operation list names
// both Instagram and Reddit task families without saying how a run
// picks between them; this makes the choice an explicit config field).
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformReddit    Platform = "reddit"
)

// WorkflowConfig is immutable for the lifetime of a run, per spec §3.
type WorkflowConfig struct {
	APIToken            string
	GroupName           string
	Accounts            []Account
	AppVersionID        string
	PackageName         string
	Platform            Platform
	ConcurrencyLimit    int
	MaxRetriesPerStage  int
	BaseBackoffSeconds  int
	PollIntervalSeconds int
	PollTimeoutSeconds  int
	WorkflowType        WorkflowType
	CustomLoginFlowID   string
	CustomLoginFlowKeys []string
	SetupFlowIDs        map[string]string
	WarmupParams        WarmupParams
	// CustomTaskOrder names the subset and order of setup-palette tasks
	// the Custom strategy executes (spec §4.5 "user-selected subset").
	CustomTaskOrder []string
}

// WarmupParams tunes the warmup protocol (spec §4.5).
type WarmupParams struct {
	VideosToBrowse int    `json:"videosToBrowse"`
	Keyword        string `json:"keyword"`
}

// Screenshot is one best-effort captured screenshot on a job.
type Screenshot struct {
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// PhoneJob is the authoritative record for one (phone, account) pair.
type PhoneJob struct {
	EnvID       string
	PhoneName   string
	Account     Account
	State       State
	Attempts    map[State]int
	TaskIDs     map[string]string
	CurrentStep int
	TotalSteps  int
	Screenshots []Screenshot
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string

	// Custom-strategy username-retry scratch (spec §3).
	UsernameCandidates []string
	UsernameAttempted  map[string]bool
	UsernameCurrent    string
	UsernameOriginal   string

	// RestartReturnState remembers which state to resume once a
	// phone-not-running restart (RESTART_ENV/CONFIRM_ENV_RUNNING) lands,
	// so the attempt is not counted against that state's retry budget
	// (spec §4.6 "Phone-not-running mid-flow").
	RestartReturnState State
}

// Snapshot returns a deep-enough copy safe to hand to subscribers/HTTP
// clients without risking a data race with further mutation.
func (j *PhoneJob) Snapshot() PhoneJob {
	cp := *j
	cp.Attempts = copyIntMap(j.Attempts)
	cp.TaskIDs = copyStringMap(j.TaskIDs)
	cp.Screenshots = append([]Screenshot(nil), j.Screenshots...)
	cp.UsernameCandidates = append([]string(nil), j.UsernameCandidates...)
	cp.UsernameAttempted = copyBoolMap(j.UsernameAttempted)
	return cp
}

func copyIntMap(m map[State]int) map[State]int {
	if m == nil {
		return nil
	}
	out := make(map[State]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBoolMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WorkflowStatus is the run-level status, forming the DAG in spec §3.
type WorkflowStatus string

const (
	StatusIdle     WorkflowStatus = "idle"
	StatusRunning  WorkflowStatus = "running"
	StatusStopping WorkflowStatus = "stopping"
	StatusStopped  WorkflowStatus = "stopped"
	StatusComplete WorkflowStatus = "completed"
)

// ResultsSummary is the derived per-run totals (spec §4.3), with the run
// duration added as a supplemental field (SPEC_FULL §3).
type ResultsSummary struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Pending         int     `json:"pending"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// LogLevel mirrors the levels in spec §4.4.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one entry in the store's bounded log ring.
type LogEntry struct {
	RunID     string         `json:"runId,omitempty"`
	EnvID     string         `json:"envId,omitempty"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

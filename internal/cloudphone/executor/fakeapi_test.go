package executor_test

import (
	"context"
	"sync"

	"cloudphone/pkg/cloudphone"
)

// fakeAPI is a scriptable stand-in for client.API: each call consults a
// queue of canned results (or falls back to a zero-value success) so
// tests can drive the exact multi-poll sequences spec §8's scenarios
// describe without a real HTTP server.
type fakeAPI struct {
	mu sync.Mutex

	startPhonesErrs []error
	startPhonesN    int

	phoneStatuses []cloudphone.PhoneStatus
	phoneStatusN  int

	restartPhonesN int

	installErrs []error
	installN    int

	installedApps [][]cloudphone.InstalledApp
	installedN    int

	loginTaskIDs []string
	loginErrs    []error
	loginN       int

	queryResults map[string][]cloudphone.TaskRecord
	queryN       map[string]int

	warmupTaskID string
	warmupErr    error
	warmupFunc   func() (string, error)
	startAppErr  error

	customTaskIDs []string
	customErrs    []error
	customN       int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{queryResults: map[string][]cloudphone.TaskRecord{}, queryN: map[string]int{}}
}

func (f *fakeAPI) ListPhones(ctx context.Context, groupName string, page, pageSize int) ([]cloudphone.Phone, error) {
	return nil, nil
}

func (f *fakeAPI) ListAllPhones(ctx context.Context, groupName string) ([]cloudphone.Phone, error) {
	return []cloudphone.Phone{{EnvID: "E1", Name: "P1"}}, nil
}

func (f *fakeAPI) StartPhones(ctx context.Context, envIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.startPhonesN++ }()
	if f.startPhonesN < len(f.startPhonesErrs) {
		return f.startPhonesErrs[f.startPhonesN]
	}
	return nil
}

func (f *fakeAPI) StopPhones(ctx context.Context, envIDs []string) error { return nil }

func (f *fakeAPI) RestartPhones(ctx context.Context, envIDs []string) error {
	f.mu.Lock()
	f.restartPhonesN++
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) GetPhoneStatus(ctx context.Context, envID string) (cloudphone.PhoneStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.phoneStatuses) == 0 {
		return cloudphone.PhoneStarted, nil
	}
	idx := f.phoneStatusN
	if idx >= len(f.phoneStatuses) {
		idx = len(f.phoneStatuses) - 1
	}
	f.phoneStatusN++
	return f.phoneStatuses[idx], nil
}

func (f *fakeAPI) InstallApp(ctx context.Context, envIDs []string, appVersionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.installN++ }()
	if f.installN < len(f.installErrs) {
		return f.installErrs[f.installN]
	}
	return nil
}

func (f *fakeAPI) UninstallApp(ctx context.Context, envIDs []string, appVersionID string) error {
	return nil
}

func (f *fakeAPI) ListInstalled(ctx context.Context, envID string) ([]cloudphone.InstalledApp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.installedApps) == 0 {
		return nil, nil
	}
	idx := f.installedN
	if idx >= len(f.installedApps) {
		idx = len(f.installedApps) - 1
	}
	f.installedN++
	return f.installedApps[idx], nil
}

func (f *fakeAPI) StartApp(ctx context.Context, envID string, packageName string) error {
	return f.startAppErr
}

func (f *fakeAPI) InstagramLogin(ctx context.Context, envID, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.loginN++ }()
	var err error
	if f.loginN < len(f.loginErrs) {
		err = f.loginErrs[f.loginN]
	}
	if err != nil {
		return "", err
	}
	taskID := "login-task"
	if f.loginN < len(f.loginTaskIDs) {
		taskID = f.loginTaskIDs[f.loginN]
	}
	return taskID, nil
}

func (f *fakeAPI) InstagramWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error) {
	f.mu.Lock()
	hook := f.warmupFunc
	f.mu.Unlock()
	if hook != nil {
		return hook()
	}
	if f.warmupErr != nil {
		return "", f.warmupErr
	}
	return f.warmupTaskID, nil
}

func (f *fakeAPI) InstagramPublishReelsVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	return "pub-task", nil
}

func (f *fakeAPI) InstagramPublishReelsImages(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	return "pub-task", nil
}

func (f *fakeAPI) RedditWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error) {
	return "warmup-task", nil
}

func (f *fakeAPI) RedditPublishImage(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	return "pub-task", nil
}

func (f *fakeAPI) RedditPublishVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	return "pub-task", nil
}

func (f *fakeAPI) CreateCustomTask(ctx context.Context, envID, flowID string, params map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.customN++ }()
	var err error
	if f.customN < len(f.customErrs) {
		err = f.customErrs[f.customN]
	}
	if err != nil {
		return "", err
	}
	taskID := "custom-task"
	if f.customN < len(f.customTaskIDs) {
		taskID = f.customTaskIDs[f.customN]
	}
	return taskID, nil
}

func (f *fakeAPI) QueryTask(ctx context.Context, taskID string) (cloudphone.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.queryResults[taskID]
	if len(seq) == 0 {
		return cloudphone.TaskRecord{TaskID: taskID, Status: cloudphone.TaskCompleted}, nil
	}
	idx := f.queryN[taskID]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	f.queryN[taskID]++
	return seq[idx], nil
}

func (f *fakeAPI) QueryTasks(ctx context.Context, taskIDs []string) ([]cloudphone.TaskRecord, error) {
	return nil, nil
}

func (f *fakeAPI) RequestScreenshot(ctx context.Context, envID string) (string, error) {
	return "req1", nil
}

func (f *fakeAPI) GetScreenshotResult(ctx context.Context, requestID string) (string, bool, error) {
	return "https://shot/ok.png", true, nil
}

func (f *fakeAPI) ListMarketplaceApps(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeAPI) ListTaskFlows(ctx context.Context) ([]string, error)       { return nil, nil }
func (f *fakeAPI) ListGroups(ctx context.Context) ([]string, error)         { return nil, nil }

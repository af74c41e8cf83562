package strategy_test

import (
	"context"
	"sync"

	"cloudphone/pkg/cloudphone"
)

// fakeAPI is a minimal scriptable client.API for strategy-level tests:
// only CreateCustomTask and QueryTask carry interesting behavior, since
// that's all the Setup/Custom/Post handlers under test exercise here.
type fakeAPI struct {
	mu sync.Mutex

	createCustomTaskFunc func(ctx context.Context, envID, flowID string, params map[string]string) (string, error)
	queryTaskFunc        func(ctx context.Context, taskID string) (cloudphone.TaskRecord, error)

	publishVideoFunc func(ctx context.Context, envID, description string, mediaURLs []string) (string, error)
	publishCalls     int
}

func (f *fakeAPI) ListPhones(ctx context.Context, groupName string, page, pageSize int) ([]cloudphone.Phone, error) {
	return nil, nil
}
func (f *fakeAPI) ListAllPhones(ctx context.Context, groupName string) ([]cloudphone.Phone, error) {
	return nil, nil
}
func (f *fakeAPI) StartPhones(ctx context.Context, envIDs []string) error   { return nil }
func (f *fakeAPI) StopPhones(ctx context.Context, envIDs []string) error   { return nil }
func (f *fakeAPI) RestartPhones(ctx context.Context, envIDs []string) error { return nil }
func (f *fakeAPI) GetPhoneStatus(ctx context.Context, envID string) (cloudphone.PhoneStatus, error) {
	return cloudphone.PhoneStarted, nil
}
func (f *fakeAPI) InstallApp(ctx context.Context, envIDs []string, appVersionID string) error {
	return nil
}
func (f *fakeAPI) UninstallApp(ctx context.Context, envIDs []string, appVersionID string) error {
	return nil
}
func (f *fakeAPI) ListInstalled(ctx context.Context, envID string) ([]cloudphone.InstalledApp, error) {
	return nil, nil
}
func (f *fakeAPI) StartApp(ctx context.Context, envID string, packageName string) error { return nil }
func (f *fakeAPI) InstagramLogin(ctx context.Context, envID, username, password string) (string, error) {
	return "", nil
}
func (f *fakeAPI) InstagramWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error) {
	return "", nil
}
func (f *fakeAPI) InstagramPublishReelsVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	f.mu.Lock()
	f.publishCalls++
	f.mu.Unlock()
	if f.publishVideoFunc != nil {
		return f.publishVideoFunc(ctx, envID, description, mediaURLs)
	}
	return "pub-task", nil
}
func (f *fakeAPI) InstagramPublishReelsImages(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	f.mu.Lock()
	f.publishCalls++
	f.mu.Unlock()
	return "pub-task", nil
}
func (f *fakeAPI) RedditWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error) {
	return "", nil
}
func (f *fakeAPI) RedditPublishImage(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	return "", nil
}
func (f *fakeAPI) RedditPublishVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	return "", nil
}
func (f *fakeAPI) CreateCustomTask(ctx context.Context, envID, flowID string, params map[string]string) (string, error) {
	if f.createCustomTaskFunc != nil {
		return f.createCustomTaskFunc(ctx, envID, flowID, params)
	}
	return "task", nil
}
func (f *fakeAPI) QueryTask(ctx context.Context, taskID string) (cloudphone.TaskRecord, error) {
	if f.queryTaskFunc != nil {
		return f.queryTaskFunc(ctx, taskID)
	}
	return cloudphone.TaskRecord{TaskID: taskID, Status: cloudphone.TaskCompleted}, nil
}
func (f *fakeAPI) QueryTasks(ctx context.Context, taskIDs []string) ([]cloudphone.TaskRecord, error) {
	return nil, nil
}
func (f *fakeAPI) RequestScreenshot(ctx context.Context, envID string) (string, error) {
	return "", nil
}
func (f *fakeAPI) GetScreenshotResult(ctx context.Context, requestID string) (string, bool, error) {
	return "", true, nil
}
func (f *fakeAPI) ListMarketplaceApps(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeAPI) ListTaskFlows(ctx context.Context) ([]string, error)       { return nil, nil }
func (f *fakeAPI) ListGroups(ctx context.Context) ([]string, error)         { return nil, nil }

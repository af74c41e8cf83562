package client

import (
	"context"

	"cloudphone/internal/cloudphone/metrics"
	"cloudphone/pkg/cloudphone"
)

const defaultPageSize = 100

type phoneListReq struct {
	GroupName string `json:"groupName"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
}

type envIDsReq struct {
	EnvIDs []string `json:"envIds"`
}

// ListPhones implements a single page of spec §4.1 "listPhones".
func (c *Client) ListPhones(ctx context.Context, groupName string, page, pageSize int) ([]cloudphone.Phone, error) {
	return doEnvelope[[]cloudphone.Phone](ctx, c, metrics.OpListPhones, "/phones/list", phoneListReq{
		GroupName: groupName, Page: page, PageSize: pageSize,
	})
}

// ListAllPhones implements the pagination helper of spec §4.1: stop once
// a page returns fewer than pageSize items.
func (c *Client) ListAllPhones(ctx context.Context, groupName string) ([]cloudphone.Phone, error) {
	var all []cloudphone.Phone
	for page := 1; ; page++ {
		batch, err := c.ListPhones(ctx, groupName, page, defaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < defaultPageSize {
			return all, nil
		}
	}
}

func (c *Client) StartPhones(ctx context.Context, envIDs []string) error {
	_, err := doEnvelope[struct{}](ctx, c, metrics.OpStartEnv, "/phones/start", envIDsReq{EnvIDs: envIDs})
	return err
}

func (c *Client) StopPhones(ctx context.Context, envIDs []string) error {
	_, err := doEnvelope[struct{}](ctx, c, metrics.OpStopEnv, "/phones/stop", envIDsReq{EnvIDs: envIDs})
	return err
}

func (c *Client) RestartPhones(ctx context.Context, envIDs []string) error {
	_, err := doEnvelope[struct{}](ctx, c, metrics.OpRestartEnv, "/phones/restart", envIDsReq{EnvIDs: envIDs})
	return err
}

type phoneStatusResp struct {
	Status cloudphone.PhoneStatus `json:"status"`
}

func (c *Client) GetPhoneStatus(ctx context.Context, envID string) (cloudphone.PhoneStatus, error) {
	resp, err := doEnvelope[phoneStatusResp](ctx, c, metrics.OpPhoneStatus, "/phones/status", struct {
		EnvID string `json:"envId"`
	}{EnvID: envID})
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

type installAppReq struct {
	EnvIDs       []string `json:"envIds"`
	AppVersionID string   `json:"appVersionId"`
}

func (c *Client) InstallApp(ctx context.Context, envIDs []string, appVersionID string) error {
	_, err := doEnvelope[struct{}](ctx, c, metrics.OpInstallApp, "/apps/install", installAppReq{
		EnvIDs: envIDs, AppVersionID: appVersionID,
	})
	return err
}

func (c *Client) UninstallApp(ctx context.Context, envIDs []string, appVersionID string) error {
	_, err := doEnvelope[struct{}](ctx, c, metrics.OpUninstallApp, "/apps/uninstall", installAppReq{
		EnvIDs: envIDs, AppVersionID: appVersionID,
	})
	return err
}

func (c *Client) ListInstalled(ctx context.Context, envID string) ([]cloudphone.InstalledApp, error) {
	return doEnvelope[[]cloudphone.InstalledApp](ctx, c, metrics.OpListInstalled, "/apps/installed", struct {
		EnvID string `json:"envId"`
	}{EnvID: envID})
}

func (c *Client) StartApp(ctx context.Context, envID string, packageName string) error {
	_, err := doEnvelope[struct{}](ctx, c, metrics.OpStartApp, "/apps/start", struct {
		EnvID       string `json:"envId"`
		PackageName string `json:"packageName"`
	}{EnvID: envID, PackageName: packageName})
	return err
}

type taskIDResp struct {
	TaskID string `json:"taskId"`
}

func (c *Client) InstagramLogin(ctx context.Context, envID, username, password string) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpLogin, "/tasks/instagram/login", struct {
		EnvID    string `json:"envId"`
		Username string `json:"username"`
		Password string `json:"password"`
	}{EnvID: envID, Username: username, Password: password})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) InstagramWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpWarmup, "/tasks/instagram/warmup", struct {
		EnvID          string `json:"envId"`
		VideosToBrowse int    `json:"videosToBrowse"`
		Keyword        string `json:"keyword"`
	}{EnvID: envID, VideosToBrowse: params.VideosToBrowse, Keyword: params.Keyword})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

type publishReq struct {
	EnvID       string   `json:"envId"`
	Description string   `json:"description"`
	MediaURLs   []string `json:"mediaUrls"`
}

func (c *Client) InstagramPublishReelsVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpPublish, "/tasks/instagram/publish/reels/video", publishReq{
		EnvID: envID, Description: description, MediaURLs: mediaURLs,
	})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) InstagramPublishReelsImages(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpPublish, "/tasks/instagram/publish/reels/images", publishReq{
		EnvID: envID, Description: description, MediaURLs: mediaURLs,
	})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) RedditWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpWarmup, "/tasks/reddit/warmup", struct {
		EnvID          string `json:"envId"`
		VideosToBrowse int    `json:"videosToBrowse"`
		Keyword        string `json:"keyword"`
	}{EnvID: envID, VideosToBrowse: params.VideosToBrowse, Keyword: params.Keyword})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) RedditPublishImage(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpPublish, "/tasks/reddit/publish/image", publishReq{
		EnvID: envID, Description: description, MediaURLs: mediaURLs,
	})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) RedditPublishVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpPublish, "/tasks/reddit/publish/video", publishReq{
		EnvID: envID, Description: description, MediaURLs: mediaURLs,
	})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) CreateCustomTask(ctx context.Context, envID, flowID string, params map[string]string) (string, error) {
	resp, err := doEnvelope[taskIDResp](ctx, c, metrics.OpCustomTask, "/tasks/custom", struct {
		EnvID    string            `json:"envId"`
		FlowID   string            `json:"flowId"`
		ParamMap map[string]string `json:"paramMap"`
	}{EnvID: envID, FlowID: flowID, ParamMap: params})
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) QueryTask(ctx context.Context, taskID string) (cloudphone.TaskRecord, error) {
	return doEnvelope[cloudphone.TaskRecord](ctx, c, metrics.OpQueryTask, "/tasks/query", struct {
		TaskID string `json:"taskId"`
	}{TaskID: taskID})
}

func (c *Client) QueryTasks(ctx context.Context, taskIDs []string) ([]cloudphone.TaskRecord, error) {
	return doEnvelope[[]cloudphone.TaskRecord](ctx, c, metrics.OpQueryTask, "/tasks/query_batch", struct {
		TaskIDs []string `json:"taskIds"`
	}{TaskIDs: taskIDs})
}

type screenshotReqResp struct {
	RequestID string `json:"requestId"`
}

func (c *Client) RequestScreenshot(ctx context.Context, envID string) (string, error) {
	resp, err := doEnvelope[screenshotReqResp](ctx, c, metrics.OpScreenshot, "/screenshots/request", struct {
		EnvID string `json:"envId"`
	}{EnvID: envID})
	if err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

type screenshotResultResp struct {
	URL   string `json:"url"`
	Ready bool   `json:"ready"`
}

func (c *Client) GetScreenshotResult(ctx context.Context, requestID string) (string, bool, error) {
	resp, err := doEnvelope[screenshotResultResp](ctx, c, metrics.OpScreenshot, "/screenshots/result", struct {
		RequestID string `json:"requestId"`
	}{RequestID: requestID})
	if err != nil {
		return "", false, err
	}
	return resp.URL, resp.Ready, nil
}

func (c *Client) ListMarketplaceApps(ctx context.Context) ([]string, error) {
	return doEnvelope[[]string](ctx, c, metrics.OpDiscovery, "/discovery/apps", nil)
}

func (c *Client) ListTaskFlows(ctx context.Context) ([]string, error) {
	return doEnvelope[[]string](ctx, c, metrics.OpDiscovery, "/discovery/flows", nil)
}

func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	return doEnvelope[[]string](ctx, c, metrics.OpDiscovery, "/discovery/groups", nil)
}

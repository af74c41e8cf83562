// Package client is the typed wrapper over the RPA provider's HTTP API
// (spec §4.1), grounded on internal/bmc/service.go's client construction
// and internal/provisioner/redfish's Client interface shape from the
// teacher repo.
package client

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"cloudphone/pkg/cloudphone"
)

// API is the full set of provider operations the orchestrator depends
// on (spec §4.1, grouped).
type API interface {
	// Phone lifecycle.
	ListPhones(ctx context.Context, groupName string, page, pageSize int) ([]cloudphone.Phone, error)
	ListAllPhones(ctx context.Context, groupName string) ([]cloudphone.Phone, error)
	StartPhones(ctx context.Context, envIDs []string) error
	StopPhones(ctx context.Context, envIDs []string) error
	RestartPhones(ctx context.Context, envIDs []string) error
	GetPhoneStatus(ctx context.Context, envID string) (cloudphone.PhoneStatus, error)

	// App lifecycle.
	InstallApp(ctx context.Context, envIDs []string, appVersionID string) error
	UninstallApp(ctx context.Context, envIDs []string, appVersionID string) error
	ListInstalled(ctx context.Context, envID string) ([]cloudphone.InstalledApp, error)
	StartApp(ctx context.Context, envID string, packageName string) error

	// RPA tasks.
	InstagramLogin(ctx context.Context, envID, username, password string) (string, error)
	InstagramWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error)
	InstagramPublishReelsVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error)
	InstagramPublishReelsImages(ctx context.Context, envID, description string, mediaURLs []string) (string, error)
	RedditWarmup(ctx context.Context, envID string, params cloudphone.WarmupParams) (string, error)
	RedditPublishImage(ctx context.Context, envID, description string, mediaURLs []string) (string, error)
	RedditPublishVideo(ctx context.Context, envID, description string, mediaURLs []string) (string, error)
	CreateCustomTask(ctx context.Context, envID, flowID string, params map[string]string) (string, error)

	// Task query.
	QueryTask(ctx context.Context, taskID string) (cloudphone.TaskRecord, error)
	QueryTasks(ctx context.Context, taskIDs []string) ([]cloudphone.TaskRecord, error)

	// Screenshots.
	RequestScreenshot(ctx context.Context, envID string) (string, error)
	GetScreenshotResult(ctx context.Context, requestID string) (string, bool, error)

	// Discovery.
	ListMarketplaceApps(ctx context.Context) ([]string, error)
	ListTaskFlows(ctx context.Context) ([]string, error)
	ListGroups(ctx context.Context) ([]string, error)
}

// Client is the HTTP-backed implementation of API. Construction mirrors
// bmc.New: a bounded-timeout *http.Client plus the bearer token and base
// URL bound once at creation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	retry      RetryPolicy
}

// Config describes how to reach the provider.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// InsecureSkipVerify matches the teacher's BMC client, which talks to
	// devices with self-signed certificates; the cloud phone provider is
	// reached over the public internet so this defaults to false.
	InsecureSkipVerify bool
	Retry              RetryPolicy
}

// New constructs a Client bound to one run's token.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		retry:      cfg.Retry.withDefaults(),
	}
}

var _ API = (*Client)(nil)

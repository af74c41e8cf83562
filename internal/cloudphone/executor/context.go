package executor

import (
	"context"
	"log/slog"
	"time"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/client"
	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/store"
	"cloudphone/pkg/cloudphone"
)

// TaskCategory scopes a pollTask budget (spec §4.7): publish tasks get
// a longer default window than everything else.
type TaskCategory string

const (
	TaskCategoryDefault TaskCategory = "default"
	TaskCategoryPublish TaskCategory = "publish"
)

const publishPollBudget = 900 * time.Second

// Context is the per-job façade injected into every handler (spec §4.4,
// C4), a concrete struct rather than an interface so handlers take one
// first-class value instead of stashing ad hoc fields on the job (spec
// §9 redesign flag). Grounded on bmc.Service plus the ctx-carrying
// struct jobs/worker.go builds per job.
type Context struct {
	EnvID  string
	Client client.API
	Config cloudphone.WorkflowConfig
	Store  *store.Store
	Bus    *bus.Bus
	Logger *slog.Logger
}

// Account returns the account bound to this job.
func (c *Context) Account() cloudphone.Account {
	job, _ := c.Store.GetJob(c.EnvID)
	return job.Account
}

// Job returns a snapshot of the job being executed.
func (c *Context) Job() cloudphone.PhoneJob {
	job, _ := c.Store.GetJob(c.EnvID)
	return job
}

// TransitionTo advances the job to state; the executor loop picks it up
// on its next iteration (spec §4.4 "transitionTo"). Entering DONE also
// stamps completedAt, the same way TransitionToFailed does for FAILED,
// since both are terminal states (spec §3).
func (c *Context) TransitionTo(state cloudphone.State) {
	if state == cloudphone.StateDone {
		c.Store.SetDone(c.EnvID)
		return
	}
	c.Store.SetState(c.EnvID, state)
}

// TransitionToFailed marks the job FAILED with reason and stamps
// completedAt (spec §4.4 "transitionToFailed").
func (c *Context) TransitionToFailed(reason string) {
	c.Store.SetFailed(c.EnvID, reason)
}

// Log writes one entry to the store's log ring and bus, and mirrors it
// to the process logger (spec §4.4 "log(level, message, details?)").
func (c *Context) Log(level cloudphone.LogLevel, message string, details map[string]any) {
	c.Store.AppendLog(cloudphone.LogEntry{
		EnvID:   c.EnvID,
		Level:   level,
		Message: message,
		Details: details,
	})
	if c.Logger != nil {
		c.Logger.Log(context.Background(), slogLevel(level), message, "envId", c.EnvID, "details", details)
	}
}

func slogLevel(level cloudphone.LogLevel) slog.Level {
	switch level {
	case cloudphone.LogDebug:
		return slog.LevelDebug
	case cloudphone.LogWarn:
		return slog.LevelWarn
	case cloudphone.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SleepWithAbort suspends for d or until ctx is cancelled, whichever
// comes first, returning a cancellation error in the latter case (spec
// §4.4 "sleepWithAbort"). Grounded on the `select { case <-ctx.Done():
// ...; case <-timer.C: }` idiom used throughout jobs/worker.go
// (awaitWebhook, pollESXiPowerState).
func (c *Context) SleepWithAbort(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return cloudphoneerr.Cancelled()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return cloudphoneerr.Cancelled()
	case <-timer.C:
		return nil
	}
}

// WithRetry runs fn, retrying on a retryable failure up to
// Config.MaxRetriesPerStage times with backoff B·2^(attempt-1) seconds
// (spec §4.7). Phone-not-running errors are never counted against the
// budget and are returned immediately so the executor can route to the
// restart branch; a non-retryable error (or budget exhaustion) is
// likewise returned unchanged for the executor to fail the job.
// Grounded on bmc.Service.doWithRetry's attempt-count-and-sleep loop,
// generalized to a job-scoped attempt counter (spec §9).
func (c *Context) WithRetry(ctx context.Context, state cloudphone.State, retryable bool, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if cloudphoneerr.IsPhoneNotRunning(err) {
			return err
		}
		if !retryable || !cloudphoneerr.IsRetryable(err) {
			return err
		}

		job, ok := c.Store.GetJob(c.EnvID)
		if !ok {
			return err
		}
		if job.Attempts[state] >= c.Config.MaxRetriesPerStage {
			return err
		}

		attempt := c.Store.RecordAttempt(c.EnvID, state)
		backoff := computeBackoff(c.Config.BaseBackoffSeconds, attempt)
		c.Log(cloudphone.LogWarn, "retrying after error", map[string]any{
			"state": string(state), "attempt": attempt, "sleep": backoff.String(), "error": err.Error(),
		})
		if serr := c.SleepWithAbort(ctx, backoff); serr != nil {
			return serr
		}
	}
}

// PollTask long-polls taskID until it reaches a terminal status or the
// category's budget expires (spec §4.7).
func (c *Context) PollTask(ctx context.Context, taskID string, category TaskCategory, timeoutOverride ...time.Duration) (cloudphone.TaskRecord, error) {
	budget := time.Duration(c.Config.PollTimeoutSeconds) * time.Second
	if category == TaskCategoryPublish {
		budget = publishPollBudget
	}
	if len(timeoutOverride) > 0 {
		budget = timeoutOverride[0]
	}
	interval := time.Duration(c.Config.PollIntervalSeconds) * time.Second
	deadline := time.Now().Add(budget)

	for {
		rec, err := c.Client.QueryTask(ctx, taskID)
		if err != nil {
			return cloudphone.TaskRecord{}, err
		}
		if rec.Status.IsTerminal() {
			return rec, nil
		}
		if time.Now().After(deadline) {
			return cloudphone.TaskRecord{}, cloudphoneerr.PollTimeout(taskID, budget.String())
		}
		if serr := c.SleepWithAbort(ctx, interval); serr != nil {
			return cloudphone.TaskRecord{}, serr
		}
	}
}

const screenshotPollInterval = 2 * time.Second
const screenshotBudget = 30 * time.Second

// TakeScreenshot is a best-effort capture: failures are logged as
// warnings and never propagate (spec §4.4 "never throws").
func (c *Context) TakeScreenshot(ctx context.Context, label string) {
	reqID, err := c.Client.RequestScreenshot(ctx, c.EnvID)
	if err != nil {
		c.Log(cloudphone.LogWarn, "screenshot request failed", map[string]any{"label": label, "error": err.Error()})
		return
	}

	deadline := time.Now().Add(screenshotBudget)
	for {
		url, ready, err := c.Client.GetScreenshotResult(ctx, reqID)
		if err != nil {
			c.Log(cloudphone.LogWarn, "screenshot result failed", map[string]any{"label": label, "error": err.Error()})
			return
		}
		if ready {
			c.Store.AppendScreenshot(c.EnvID, label, url)
			return
		}
		if time.Now().After(deadline) {
			c.Log(cloudphone.LogWarn, "screenshot timed out", map[string]any{"label": label})
			return
		}
		if serr := c.SleepWithAbort(ctx, screenshotPollInterval); serr != nil {
			return
		}
	}
}

func computeBackoff(baseSeconds, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 20 {
		attempt = 20
	}
	return time.Duration(baseSeconds) * time.Second * time.Duration(uint64(1)<<uint(attempt-1))
}

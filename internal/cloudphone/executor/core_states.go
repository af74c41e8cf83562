package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/pkg/cloudphone"
)

// coreHandlers is the shared pre-login state table (spec §4.6):
// INIT -> START_ENV -> CONFIRM_ENV_RUNNING -> INSTALL_APP ->
// CONFIRM_APP_INSTALLED -> LOGIN -> POLL_LOGIN_TASK -> <strategy
// post-login state>, plus RESTART_ENV for the phone-not-running branch.
// Every strategy shares this table unmodified; only POLL_LOGIN_TASK
// needs the strategy itself, to resolve the post-login hand-off.
func coreHandlers(strat Strategy) map[cloudphone.State]HandlerFunc {
	return map[cloudphone.State]HandlerFunc{
		cloudphone.StateInit:                handleInit,
		cloudphone.StateStartEnv:            handleStartEnv,
		cloudphone.StateConfirmEnvRunning:   handleConfirmEnvRunning,
		cloudphone.StateRestartEnv:          handleRestartEnv,
		cloudphone.StateInstallApp:          handleInstallApp,
		cloudphone.StateConfirmAppInstalled: handleConfirmAppInstalled,
		cloudphone.StateLogin:               handleLogin,
		cloudphone.StatePollLoginTask:       handlePollLoginTask(strat),
	}
}

func handleInit(ctx context.Context, ec *Context) error {
	ec.TransitionTo(cloudphone.StateStartEnv)
	return nil
}

// handleStartEnv: spec §4.6 "call startPhones([envId]). Success ->
// CONFIRM_ENV_RUNNING. Retry on transient transport/code failure."
func handleStartEnv(ctx context.Context, ec *Context) error {
	err := ec.WithRetry(ctx, cloudphone.StateStartEnv, true, func() error {
		return ec.Client.StartPhones(ctx, []string{ec.EnvID})
	})
	if err != nil {
		return err
	}
	ec.TransitionTo(cloudphone.StateConfirmEnvRunning)
	return nil
}

// handleConfirmEnvRunning also serves as the landing state after a
// restart: if the job carries a RestartReturnState, success routes back
// there instead of to INSTALL_APP (spec §4.6 "Phone-not-running
// mid-flow").
func handleConfirmEnvRunning(ctx context.Context, ec *Context) error {
	deadline := time.Now().Add(time.Duration(ec.Config.PollTimeoutSeconds) * time.Second)
	interval := time.Duration(ec.Config.PollIntervalSeconds) * time.Second

	for {
		status, err := ec.Client.GetPhoneStatus(ctx, ec.EnvID)
		if err != nil {
			return err
		}
		if status == cloudphone.PhoneStarted {
			job := ec.Job()
			next := cloudphone.StateInstallApp
			if job.RestartReturnState != "" {
				next = job.RestartReturnState
				ec.Store.SetRestartReturn(ec.EnvID, "")
			}
			ec.TransitionTo(next)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("phone did not start (last status %d)", status)
		}
		if serr := ec.SleepWithAbort(ctx, interval); serr != nil {
			return serr
		}
	}
}

func handleRestartEnv(ctx context.Context, ec *Context) error {
	err := ec.WithRetry(ctx, cloudphone.StateRestartEnv, true, func() error {
		return ec.Client.RestartPhones(ctx, []string{ec.EnvID})
	})
	if err != nil {
		return err
	}
	ec.TransitionTo(cloudphone.StateConfirmEnvRunning)
	return nil
}

// handleInstallApp treats code 42004 (higher version installed) as
// success-equivalent per spec §4.6/§7.
func handleInstallApp(ctx context.Context, ec *Context) error {
	err := ec.WithRetry(ctx, cloudphone.StateInstallApp, true, func() error {
		installErr := ec.Client.InstallApp(ctx, []string{ec.EnvID}, ec.Config.AppVersionID)
		if installErr == nil {
			return nil
		}
		var cerr *cloudphoneerr.Error
		if errors.As(installErr, &cerr) && cerr.Code == cloudphone.CodeHigherVersionInstalled {
			return nil
		}
		return installErr
	})
	if err != nil {
		return err
	}
	ec.TransitionTo(cloudphone.StateConfirmAppInstalled)
	return nil
}

func handleConfirmAppInstalled(ctx context.Context, ec *Context) error {
	budget := time.Duration(ec.Config.PollTimeoutSeconds) * time.Second
	deadline := time.Now().Add(budget)
	interval := time.Duration(ec.Config.PollIntervalSeconds) * time.Second

	for {
		apps, err := ec.Client.ListInstalled(ctx, ec.EnvID)
		if err != nil {
			return err
		}
		for _, app := range apps {
			if app.AppVersionID == ec.Config.AppVersionID {
				ec.TransitionTo(cloudphone.StateLogin)
				return nil
			}
		}
		if time.Now().After(deadline) {
			return cloudphoneerr.PollTimeout(ec.Config.AppVersionID, budget.String())
		}
		if serr := ec.SleepWithAbort(ctx, interval); serr != nil {
			return serr
		}
	}
}

// handleLogin submits either the configured custom login flow or the
// built-in Instagram login, per spec §4.6.
func handleLogin(ctx context.Context, ec *Context) error {
	account := ec.Account()
	var taskID string
	err := ec.WithRetry(ctx, cloudphone.StateLogin, true, func() error {
		var callErr error
		if ec.Config.CustomLoginFlowID != "" {
			params := buildLoginParams(ec.Config.CustomLoginFlowKeys, account)
			taskID, callErr = ec.Client.CreateCustomTask(ctx, ec.EnvID, ec.Config.CustomLoginFlowID, params)
		} else {
			taskID, callErr = ec.Client.InstagramLogin(ctx, ec.EnvID, account.Username, account.Password)
		}
		return callErr
	})
	if err != nil {
		return err
	}
	ec.Store.SetTaskID(ec.EnvID, "login", taskID)
	ec.TransitionTo(cloudphone.StatePollLoginTask)
	return nil
}

// buildLoginParams zips the configured custom-flow parameter keys to
// the account's credential fields by position (username, then
// password); keys beyond the two known fields are left unset.
func buildLoginParams(keys []string, account cloudphone.Account) map[string]string {
	values := []string{account.Username, account.Password}
	params := make(map[string]string, len(keys))
	for i, key := range keys {
		if i < len(values) {
			params[key] = values[i]
		}
	}
	return params
}

// handlePollLoginTask polls the login task to terminal status. Success
// hands off to the strategy's post-login state; failure retries from
// LOGIN up to R times, sharing LOGIN's attempt budget rather than its
// own (spec §4.6 "failure -> retry from LOGIN up to R times").
func handlePollLoginTask(strat Strategy) HandlerFunc {
	return func(ctx context.Context, ec *Context) error {
		job := ec.Job()
		taskID := job.TaskIDs["login"]

		rec, err := ec.PollTask(ctx, taskID, TaskCategoryDefault)
		if err != nil {
			return err
		}
		if rec.Status == cloudphone.TaskCompleted {
			ec.TransitionTo(strat.GetPostLoginState(job, ec.Config))
			return nil
		}

		attempt := ec.Store.RecordAttempt(ec.EnvID, cloudphone.StateLogin)
		if attempt > ec.Config.MaxRetriesPerStage {
			return fmt.Errorf("login failed after %d attempts: %s", attempt-1, rec.FailDesc)
		}
		backoff := computeBackoff(ec.Config.BaseBackoffSeconds, attempt)
		ec.Log(cloudphone.LogWarn, "login task failed, retrying", map[string]any{"attempt": attempt, "failDesc": rec.FailDesc})
		if serr := ec.SleepWithAbort(ctx, backoff); serr != nil {
			return serr
		}
		ec.TransitionTo(cloudphone.StateLogin)
		return nil
	}
}

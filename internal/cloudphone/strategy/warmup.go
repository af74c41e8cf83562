package strategy

import (
	"context"
	"fmt"

	"cloudphone/internal/cloudphone/executor"
	"cloudphone/pkg/cloudphone"
)

// Warmup runs the provider's engagement-simulation protocol after
// login: bring the app to the foreground, submit the warmup task, poll
// it to terminal (spec §4.5 "Warmup").
type Warmup struct{}

func (Warmup) Name() cloudphone.WorkflowType { return cloudphone.WorkflowWarmup }
func (Warmup) RequiresLogin() bool           { return true }

func (Warmup) GetPostLoginState(job cloudphone.PhoneJob, cfg cloudphone.WorkflowConfig) cloudphone.State {
	return cloudphone.StateStartApp
}

func (Warmup) GetStateHandler(state cloudphone.State) (executor.HandlerFunc, bool) {
	switch state {
	case cloudphone.StateStartApp:
		return handleStartApp, true
	case cloudphone.StateStartWarmup:
		return handleStartWarmup, true
	case cloudphone.StatePollWarmup:
		return handlePollWarmup, true
	default:
		return nil, false
	}
}

func (Warmup) GetRetryableStates() map[cloudphone.State]bool {
	return map[cloudphone.State]bool{
		cloudphone.StateStartApp:    true,
		cloudphone.StateStartWarmup: true,
	}
}

func (Warmup) GetTotalSteps() int { return 3 }

func handleStartApp(ctx context.Context, ec *executor.Context) error {
	err := ec.WithRetry(ctx, cloudphone.StateStartApp, true, func() error {
		return ec.Client.StartApp(ctx, ec.EnvID, ec.Config.PackageName)
	})
	if err != nil {
		return err
	}
	ec.TransitionTo(cloudphone.StateStartWarmup)
	return nil
}

func handleStartWarmup(ctx context.Context, ec *executor.Context) error {
	var taskID string
	err := ec.WithRetry(ctx, cloudphone.StateStartWarmup, true, func() error {
		var callErr error
		if ec.Config.Platform == cloudphone.PlatformReddit {
			taskID, callErr = ec.Client.RedditWarmup(ctx, ec.EnvID, ec.Config.WarmupParams)
		} else {
			taskID, callErr = ec.Client.InstagramWarmup(ctx, ec.EnvID, ec.Config.WarmupParams)
		}
		return callErr
	})
	if err != nil {
		return err
	}
	ec.Store.SetTaskID(ec.EnvID, "warmup", taskID)
	ec.TransitionTo(cloudphone.StatePollWarmup)
	return nil
}

func handlePollWarmup(ctx context.Context, ec *executor.Context) error {
	job := ec.Job()
	rec, err := ec.PollTask(ctx, job.TaskIDs["warmup"], executor.TaskCategoryDefault)
	if err != nil {
		return err
	}
	if rec.Status != cloudphone.TaskCompleted {
		return fmt.Errorf("warmup failed: %s", rec.FailDesc)
	}
	ec.TransitionTo(cloudphone.StateDone)
	return nil
}

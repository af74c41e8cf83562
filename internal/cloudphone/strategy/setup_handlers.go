package strategy

import (
	"context"
	"fmt"

	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/pkg/cloudphone"
)

// orderFunc resolves the task-name sequence a strategy walks: Setup's
// is the fixed palette order; Custom's is Config.CustomTaskOrder, read
// at call time since GetStateHandler itself has no access to the run's
// config.
type orderFunc func(cloudphone.WorkflowConfig) []string

func fixedOrder(cfg cloudphone.WorkflowConfig) []string { return paletteOrder() }

func customOrder(cfg cloudphone.WorkflowConfig) []string { return cfg.CustomTaskOrder }

// submitSetupTask and pollSetupTask are generic submit+poll handlers
// shared by every palette task in both Setup and Custom; order decides
// what state to land on next (Setup's fixed order vs Custom's
// user-selected order), resolved dynamically per job since gating
// depends on that job's account data.
func submitSetupTask(task setupTask, order orderFunc) executor.HandlerFunc {
	return func(ctx context.Context, ec *executor.Context) error {
		job := ec.Job()
		data := setupDataOf(job.Account)
		flowID := ec.Config.SetupFlowIDs[task.Name]

		var taskID string
		err := ec.WithRetry(ctx, task.SubmitState, true, func() error {
			var callErr error
			taskID, callErr = ec.Client.CreateCustomTask(ctx, ec.EnvID, flowID, task.Params(data))
			return callErr
		})
		if err != nil {
			return err
		}
		ec.Store.SetTaskID(ec.EnvID, task.Name, taskID)
		ec.TransitionTo(task.PollState)
		return nil
	}
}

func pollSetupTask(task setupTask, order orderFunc) executor.HandlerFunc {
	return func(ctx context.Context, ec *executor.Context) error {
		job := ec.Job()
		rec, err := ec.PollTask(ctx, job.TaskIDs[task.Name], executor.TaskCategoryDefault)
		if err != nil {
			return err
		}
		if rec.Status != cloudphone.TaskCompleted {
			return fmt.Errorf("%s failed: %s", task.Name, rec.FailDesc)
		}
		data := setupDataOf(job.Account)
		ec.TransitionTo(nextTaskState(order(ec.Config), ec.Config, data, task.Name))
		return nil
	}
}

// handleCustomRenameUsername implements Custom's smart username retry:
// when the rename task fails with a username-taken description, it
// resubmits with the next candidate. Candidates are the requested
// username followed by that username with _1, _2, ... appended; the
// display name is not used to build them, and the number of candidates
// tried is not capped. The loop ends on success, on a failure that is
// not username-taken, or on a submit/poll error (including
// cancellation). The whole submit/poll cycle lives in one handler, so
// username-taken retries never count against R; submit errors still go
// through WithRetry and its budget.
func handleCustomRenameUsername(order orderFunc) executor.HandlerFunc {
	task, _ := setupTaskByName("renameUsername")
	return func(ctx context.Context, ec *executor.Context) error {
		job := ec.Job()
		data := setupDataOf(job.Account)

		original := job.UsernameOriginal
		if original == "" {
			original = data.NewUsername
		}
		candidate := job.UsernameCurrent
		if candidate == "" {
			candidate = data.NewUsername
		}
		attempted := job.UsernameAttempted
		if attempted == nil {
			attempted = make(map[string]bool)
		}
		candidates := job.UsernameCandidates

		flowID := ec.Config.SetupFlowIDs[task.Name]

		for {
			attempted[candidate] = true
			candidates = append(candidates, candidate)
			ec.Store.SetUsernameScratch(ec.EnvID, candidates, attempted, candidate, original)

			var taskID string
			err := ec.WithRetry(ctx, task.SubmitState, true, func() error {
				var callErr error
				taskID, callErr = ec.Client.CreateCustomTask(ctx, ec.EnvID, flowID, map[string]string{"newUsername": candidate})
				return callErr
			})
			if err != nil {
				return err
			}
			ec.Store.SetTaskID(ec.EnvID, task.Name, taskID)

			rec, perr := ec.PollTask(ctx, taskID, executor.TaskCategoryDefault)
			if perr != nil {
				return perr
			}
			if rec.Status == cloudphone.TaskCompleted {
				ec.TransitionTo(nextTaskState(order(ec.Config), ec.Config, data, task.Name))
				return nil
			}
			if !cloudphoneerr.IsUsernameTaken(rec.FailDesc) {
				return fmt.Errorf("rename username failed: %s", rec.FailDesc)
			}

			ec.Log(cloudphone.LogInfo, "username taken, trying alternative", map[string]any{"candidate": candidate})
			candidate = nextUsernameCandidate(original, attempted)
		}
	}
}

func nextUsernameCandidate(original string, attempted map[string]bool) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", original, i)
		if !attempted[candidate] {
			return candidate
		}
	}
}

package strategy

import (
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/pkg/cloudphone"
)

// Setup walks the full profile-configuration palette, in its fixed
// order, gated per task on flow-id + data presence (spec §4.5 "Setup").
type Setup struct{}

func (Setup) Name() cloudphone.WorkflowType { return cloudphone.WorkflowSetup }
func (Setup) RequiresLogin() bool           { return true }

func (Setup) GetPostLoginState(job cloudphone.PhoneJob, cfg cloudphone.WorkflowConfig) cloudphone.State {
	return firstTaskState(paletteOrder(), cfg, setupDataOf(job.Account))
}

func (Setup) GetStateHandler(state cloudphone.State) (executor.HandlerFunc, bool) {
	for _, task := range setupPalette {
		switch state {
		case task.SubmitState:
			return submitSetupTask(task, fixedOrder), true
		case task.PollState:
			return pollSetupTask(task, fixedOrder), true
		}
	}
	return nil, false
}

func (Setup) GetRetryableStates() map[cloudphone.State]bool {
	retryable := make(map[cloudphone.State]bool, len(setupPalette))
	for _, task := range setupPalette {
		retryable[task.SubmitState] = true
	}
	return retryable
}

func (Setup) GetTotalSteps() int { return len(setupPalette) }

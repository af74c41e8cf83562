package strategy

import (
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/pkg/cloudphone"
)

// Custom walks only the user-selected subset of the palette, in the
// user-specified order (spec §4.5 "Custom"), with the rename-username
// task swapped for the smart-retry handler (spec §4.5/§8 scenario 5).
type Custom struct{}

func (Custom) Name() cloudphone.WorkflowType { return cloudphone.WorkflowCustom }
func (Custom) RequiresLogin() bool           { return true }

func (Custom) GetPostLoginState(job cloudphone.PhoneJob, cfg cloudphone.WorkflowConfig) cloudphone.State {
	return firstTaskState(cfg.CustomTaskOrder, cfg, setupDataOf(job.Account))
}

func (Custom) GetStateHandler(state cloudphone.State) (executor.HandlerFunc, bool) {
	for _, task := range setupPalette {
		switch state {
		case task.SubmitState:
			if task.Name == "renameUsername" {
				return handleCustomRenameUsername(customOrder), true
			}
			return submitSetupTask(task, customOrder), true
		case task.PollState:
			if task.Name == "renameUsername" {
				// Polling is folded into handleCustomRenameUsername's
				// own loop; this state is never entered standalone.
				return nil, false
			}
			return pollSetupTask(task, customOrder), true
		}
	}
	return nil, false
}

func (Custom) GetRetryableStates() map[cloudphone.State]bool {
	retryable := make(map[cloudphone.State]bool, len(setupPalette))
	for _, task := range setupPalette {
		retryable[task.SubmitState] = true
	}
	return retryable
}

func (Custom) GetTotalSteps() int { return len(setupPalette) }

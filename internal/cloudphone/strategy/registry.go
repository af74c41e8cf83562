package strategy

import (
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/pkg/cloudphone"
)

// Registry maps each workflow type to its strategy implementation. The
// orchestrator looks up the strategy for a run once, at start time.
var Registry = map[cloudphone.WorkflowType]executor.Strategy{
	cloudphone.WorkflowWarmup: Warmup{},
	cloudphone.WorkflowPost:   Post{},
	cloudphone.WorkflowSetup:  Setup{},
	cloudphone.WorkflowCustom: Custom{},
}

// Get resolves a workflow type to its strategy.
func Get(wt cloudphone.WorkflowType) (executor.Strategy, bool) {
	s, ok := Registry[wt]
	return s, ok
}

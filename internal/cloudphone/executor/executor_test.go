package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/internal/cloudphone/store"
	"cloudphone/internal/cloudphone/strategy"
	"cloudphone/pkg/cloudphone"
)

func baseConfig() cloudphone.WorkflowConfig {
	return cloudphone.WorkflowConfig{
		WorkflowType:        cloudphone.WorkflowWarmup,
		AppVersionID:        "v1",
		MaxRetriesPerStage:  3,
		BaseBackoffSeconds:  0,
		PollIntervalSeconds: 0,
		PollTimeoutSeconds:  60,
		Accounts:            []cloudphone.Account{{Username: "a", Password: "b"}},
	}
}

func newJob(envID string) *cloudphone.PhoneJob {
	return &cloudphone.PhoneJob{EnvID: envID, PhoneName: "P1", Account: cloudphone.Account{Username: "a", Password: "b"}}
}

// Scenario 1: happy warmup of one account (spec §8 scenario 1).
func TestExecutor_HappyWarmup(t *testing.T) {
	b := bus.New()
	st := store.New(b)
	job := newJob("E1")
	if err := st.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	api := newFakeAPI()
	api.phoneStatuses = []cloudphone.PhoneStatus{cloudphone.PhoneStarting, cloudphone.PhoneStarting, cloudphone.PhoneStarted}
	api.installedApps = [][]cloudphone.InstalledApp{nil, {{AppVersionID: "v1"}}}
	api.loginTaskIDs = []string{"t1"}
	api.warmupTaskID = "t2"
	api.queryResults = map[string][]cloudphone.TaskRecord{
		"t1": {{Status: cloudphone.TaskInProgress}, {Status: cloudphone.TaskInProgress}, {Status: cloudphone.TaskCompleted}},
		"t2": {{Status: cloudphone.TaskInProgress}, {Status: cloudphone.TaskCompleted}},
	}
	api.queryN = map[string]int{}

	strat, ok := strategy.Get(cloudphone.WorkflowWarmup)
	if !ok {
		t.Fatal("warmup strategy not registered")
	}

	exec := &executor.Executor{Client: api, Store: st, Bus: b}
	exec.Run(context.Background(), "E1", baseConfig(), strat)

	final, ok := st.GetJob("E1")
	if !ok {
		t.Fatal("job missing after run")
	}
	if final.State != cloudphone.StateDone {
		t.Fatalf("expected DONE, got %s (error=%s)", final.State, final.Error)
	}
	if final.CompletedAt == nil {
		t.Fatal("expected CompletedAt to be stamped on DONE")
	}

	summary := st.GetResultsSummary()
	if summary.Total != 1 || summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

// Scenario 2: phone-not-running mid-flow triggers a restart branch whose
// attempt is not counted against the originating state's retry budget
// (spec §8 scenario 2).
func TestExecutor_PhoneNotRunningMidFlow(t *testing.T) {
	b := bus.New()
	st := store.New(b)
	job := newJob("E1")
	if err := st.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	api := newFakeAPI()
	api.phoneStatuses = []cloudphone.PhoneStatus{cloudphone.PhoneStarted}
	api.installedApps = [][]cloudphone.InstalledApp{{{AppVersionID: "v1"}}}
	api.loginTaskIDs = []string{"t1"}
	api.queryResults = map[string][]cloudphone.TaskRecord{
		"t1": {{Status: cloudphone.TaskCompleted}},
	}
	api.queryResults["t2"] = []cloudphone.TaskRecord{{Status: cloudphone.TaskCompleted}}

	// First warmup submission reports the phone isn't running; the
	// second (after the restart branch) succeeds.
	callCount := 0
	api.warmupFunc = func() (string, error) {
		callCount++
		if callCount == 1 {
			return "", cloudphoneerr.FromProviderCode(42002, "env not running")
		}
		return "t2", nil
	}

	strat, _ := strategy.Get(cloudphone.WorkflowWarmup)
	exec := &executor.Executor{Client: api, Store: st, Bus: b}
	exec.Run(context.Background(), "E1", baseConfig(), strat)

	final, _ := st.GetJob("E1")
	if final.State != cloudphone.StateDone {
		t.Fatalf("expected DONE, got %s (error=%s)", final.State, final.Error)
	}
	if final.Attempts[cloudphone.StateStartWarmup] != 0 {
		t.Fatalf("phone-not-running retry must not count against the budget, got attempts=%d", final.Attempts[cloudphone.StateStartWarmup])
	}
	if api.restartPhonesN != 1 {
		t.Fatalf("expected exactly one restart call, got %d", api.restartPhonesN)
	}
}

// Scenario 3: exhausted retries on LOGIN end the job FAILED after
// exactly R+1 submissions (spec §8 scenario 3).
func TestExecutor_ExhaustedRetries(t *testing.T) {
	b := bus.New()
	st := store.New(b)
	job := newJob("E1")
	if err := st.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	api := newFakeAPI()
	api.phoneStatuses = []cloudphone.PhoneStatus{cloudphone.PhoneStarted}
	api.installedApps = [][]cloudphone.InstalledApp{{{AppVersionID: "v1"}}}
	transportErr := cloudphoneerr.Transport(errors.New("boom"))
	api.loginErrs = []error{transportErr, transportErr, transportErr}

	cfg := baseConfig()
	cfg.MaxRetriesPerStage = 2
	cfg.BaseBackoffSeconds = 0

	strat, _ := strategy.Get(cloudphone.WorkflowWarmup)
	exec := &executor.Executor{Client: api, Store: st, Bus: b}
	exec.Run(context.Background(), "E1", cfg, strat)

	final, _ := st.GetJob("E1")
	if final.State != cloudphone.StateFailed {
		t.Fatalf("expected FAILED, got %s", final.State)
	}
	if api.loginN != 3 {
		t.Fatalf("expected 3 login submissions (initial + 2 retries), got %d", api.loginN)
	}
	if final.Error == "" {
		t.Fatal("expected a recorded error message")
	}
}

// Scenario 4: cancellation during a poll loop fails every job promptly
// with error "cancelled" (spec §8 scenario 4).
func TestExecutor_Cancellation(t *testing.T) {
	b := bus.New()
	st := store.New(b)
	job := newJob("E1")
	if err := st.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	api := newFakeAPI()
	// CONFIRM_ENV_RUNNING polls forever (never reaches STARTED) until
	// cancellation interrupts the sleep.
	api.phoneStatuses = []cloudphone.PhoneStatus{cloudphone.PhoneStarting}

	cfg := baseConfig()
	cfg.PollIntervalSeconds = 1
	cfg.PollTimeoutSeconds = 3600

	strat, _ := strategy.Get(cloudphone.WorkflowWarmup)
	exec := &executor.Executor{Client: api, Store: st, Bus: b}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		exec.Run(ctx, "E1", cfg, strat)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not observe cancellation promptly")
	}

	final, _ := st.GetJob("E1")
	if final.State != cloudphone.StateFailed {
		t.Fatalf("expected FAILED, got %s", final.State)
	}
	if final.Error != "cancelled" {
		t.Fatalf("expected canonical error %q, got %q", "cancelled", final.Error)
	}
}

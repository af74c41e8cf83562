// Package executor runs the per-job state machine (spec §4.6): a
// strategy-specific state table layered over a shared pre-login core
// table, with cancellation and the phone-not-running restart branch
// applied uniformly regardless of which handler raised the error. Retry
// budgets are enforced inside handlers by Context.WithRetry; the loop
// itself does not retry, fails the job on any other error, and does not
// consult Strategy.GetRetryableStates. Grounded on jobs/worker.go's
// runJob/executeState loop from the teacher repo, generalized from a
// single bare-metal provisioning sequence to a pluggable strategy.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/client"
	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/metrics"
	"cloudphone/internal/cloudphone/store"
	"cloudphone/pkg/cloudphone"
)

// HandlerFunc runs one state's behavior against a job, mutating state
// via ec.TransitionTo/TransitionToFailed itself on success; a non-nil
// return is an unhandled failure for the executor loop to act on.
type HandlerFunc func(ctx context.Context, ec *Context) error

// Strategy is defined here (the consumer) rather than in package
// strategy, so package strategy can import executor without a cycle —
// concrete strategies there implement this interface (spec §4.5).
type Strategy interface {
	Name() cloudphone.WorkflowType
	RequiresLogin() bool
	GetPostLoginState(job cloudphone.PhoneJob, cfg cloudphone.WorkflowConfig) cloudphone.State
	GetStateHandler(state cloudphone.State) (HandlerFunc, bool)
	GetRetryableStates() map[cloudphone.State]bool
	GetTotalSteps() int
}

// Executor owns the shared collaborators every job needs; Run spawns
// one per-job state-machine loop.
type Executor struct {
	Client client.API
	Store  *store.Store
	Bus    *bus.Bus
	Logger *slog.Logger
}

// Run drives envID's job through its strategy's state machine until it
// reaches DONE or FAILED, or ctx is cancelled (spec §4.6, §5
// "cancellation ... surfaces a cancellation error, which executors
// translate to state=FAILED").
func (e *Executor) Run(ctx context.Context, envID string, cfg cloudphone.WorkflowConfig, strat Strategy) {
	ec := &Context{
		EnvID:  envID,
		Client: e.Client,
		Config: cfg,
		Store:  e.Store,
		Bus:    e.Bus,
		Logger: e.Logger,
	}

	for {
		job, ok := ec.Store.GetJob(envID)
		if !ok {
			return
		}

		switch job.State {
		case cloudphone.StateDone:
			metrics.IncJobTerminal("done")
			return
		case cloudphone.StateFailed:
			metrics.IncJobTerminal("failed")
			return
		}

		select {
		case <-ctx.Done():
			ec.TransitionToFailed("cancelled")
			continue
		default:
		}

		handler, ok := lookupHandler(job.State, strat)
		if !ok {
			ec.TransitionToFailed(fmt.Sprintf("no handler registered for state %s", job.State))
			continue
		}

		start := time.Now()
		err := handler(ctx, ec)
		metrics.ObserveJobPhase(string(job.State), time.Since(start))

		if err == nil {
			continue
		}

		if cloudphoneerr.IsPhoneNotRunning(err) {
			ec.Store.SetRestartReturn(envID, job.State)
			ec.Log(cloudphone.LogWarn, "phone not running, restarting", map[string]any{"state": string(job.State)})
			ec.TransitionTo(cloudphone.StateRestartEnv)
			continue
		}

		ec.Log(cloudphone.LogError, "state failed", map[string]any{"state": string(job.State), "error": err.Error()})
		ec.TransitionToFailed(err.Error())
	}
}

// lookupHandler resolves state via the strategy's table first, falling
// back to the shared core table only for the pre-login prefix and
// RESTART_ENV (spec §9 "table ... composed via lookup-then-fallback").
func lookupHandler(state cloudphone.State, strat Strategy) (HandlerFunc, bool) {
	if h, ok := strat.GetStateHandler(state); ok {
		return h, true
	}
	if h, ok := coreHandlers(strat)[state]; ok {
		return h, true
	}
	return nil, false
}

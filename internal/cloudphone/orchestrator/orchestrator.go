// Package orchestrator is the process-wide Scheduler (spec §4.8, C7):
// loads the phone roster, pairs phones to account rows, spawns bounded
// concurrent executors, and aggregates results. Grounded on
// cmd/shoal/main.go's signal-driven graceful shutdown generalized into a
// reusable cancellation token threaded through every job, and on
// jobs/worker.go's per-job goroutine shape, fanned out under a counting
// semaphore instead of the teacher's single worker loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/client"
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/internal/cloudphone/store"
	"cloudphone/internal/cloudphone/strategy"
	"cloudphone/pkg/cloudphone"
)

// ErrAlreadyRunning is returned by Start when a run is already active,
// and by Clear while a run is active (spec §6 "409 if already running").
var ErrAlreadyRunning = errors.New("orchestrator: a run is already active")

// NewClientFunc builds the provider client for one run, bound to that
// run's bearer token (spec §6 "Base URL and token from config" — the
// token arrives per /workflow/start request, not at process startup, so
// the orchestrator mints a fresh client per run rather than holding one
// client.API for the process lifetime).
type NewClientFunc func(apiToken string) client.API

// Orchestrator is the process-wide singleton coordinating one run at a
// time. Construct with Init; access the live instance with Instance.
type Orchestrator struct {
	newClient NewClientFunc
	store     *store.Store
	bus       *bus.Bus
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	doneCh  chan struct{}
}

var (
	instanceMu sync.Mutex
	instance   *Orchestrator
)

// Init constructs the process-wide orchestrator. Called once at process
// startup (spec §9 "process-wide state with explicit init()/reset()
// lifecycle"); a second call replaces the instance, which only makes
// sense between tests or process restarts, never during a live run.
func Init(newClient NewClientFunc, st *store.Store, b *bus.Bus, logger *slog.Logger) *Orchestrator {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = &Orchestrator{newClient: newClient, store: st, bus: b, logger: logger}
	return instance
}

// Instance returns the process-wide orchestrator, or nil if Init has not
// run yet.
func Instance() *Orchestrator {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// IsRunning reports whether a run is currently executing.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Start validates no prior run is active, pairs phones to account rows,
// creates a job per pair, and spawns bounded concurrent executors (spec
// §4.8). It returns once every job has been created and its goroutine
// launched; it does not wait for the run to finish.
func (o *Orchestrator) Start(cfg cloudphone.WorkflowConfig) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.doneCh = make(chan struct{})
	o.mu.Unlock()

	fail := func(err error) error {
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
		cancel()
		return err
	}

	strat, ok := strategy.Get(cfg.WorkflowType)
	if !ok {
		return fail(fmt.Errorf("orchestrator: unknown workflow type %q", cfg.WorkflowType))
	}

	api := o.newClient(cfg.APIToken)

	phones, err := api.ListAllPhones(ctx, cfg.GroupName)
	if err != nil {
		return fail(fmt.Errorf("orchestrator: list phones: %w", err))
	}

	o.store.Reset()
	o.store.SetRunID(uuid.NewString())

	// Deterministic pairing: row order, truncated at the shorter list
	// (spec §8 "job→(envId, username) pairing is a deterministic
	// function of row order").
	n := len(phones)
	if len(cfg.Accounts) < n {
		n = len(cfg.Accounts)
	}

	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		job := &cloudphone.PhoneJob{
			EnvID:      phones[i].EnvID,
			PhoneName:  phones[i].Name,
			Account:    cfg.Accounts[i],
			TotalSteps: strat.GetTotalSteps(),
			StartedAt:  now,
		}
		if cerr := o.store.CreateJob(job); cerr != nil {
			o.logger.Error("orchestrator: create job failed", "envId", job.EnvID, "error", cerr)
		}
	}

	o.store.SetStatus(cloudphone.StatusRunning, "")

	limit := cfg.ConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	exec := &executor.Executor{Client: api, Store: o.store, Bus: o.bus, Logger: o.logger}

	envIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		envIDs = append(envIDs, phones[i].EnvID)
	}

	for _, envID := range envIDs {
		o.wg.Add(1)
		envID := envID
		go func() {
			defer o.wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			exec.Run(ctx, envID, cfg, strat)
		}()
	}

	go o.awaitCompletion(ctx)

	return nil
}

// awaitCompletion blocks until every executor goroutine has returned,
// then finalizes the run's terminal status and publishes the results
// summary (spec §4.8 "on all-terminal, publishes workflow_status=completed
// and a final results summary").
func (o *Orchestrator) awaitCompletion(ctx context.Context) {
	o.wg.Wait()

	o.mu.Lock()
	wasCancelled := ctx.Err() != nil
	o.running = false
	o.cancel = nil
	done := o.doneCh
	o.mu.Unlock()

	if wasCancelled {
		o.store.SetStatus(cloudphone.StatusStopped, "")
	} else {
		o.store.SetStatus(cloudphone.StatusComplete, "")
	}
	o.store.PublishResults()
	close(done)
}

// Stop fires the cancellation signal to every executor and blocks until
// they have all returned (spec §4.8 "awaits their termination"). It is
// idempotent: calling it with no active run forces the store's status to
// stopped if it disagrees (spec §6 "idempotent; forces status to stopped
// even if orchestrator is absent but store disagrees"), and is a no-op
// otherwise.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		if status := o.store.Status(); status == cloudphone.StatusRunning || status == cloudphone.StatusStopping {
			o.store.SetStatus(cloudphone.StatusStopped, "")
		}
		return
	}
	o.store.SetStatus(cloudphone.StatusStopping, "")
	cancel := o.cancel
	done := o.doneCh
	o.mu.Unlock()

	cancel()
	<-done
}

// Clear resets the store to idle. It refuses while a run is active (spec
// §6 "requires non-running; resets store to idle").
func (o *Orchestrator) Clear() error {
	if o.IsRunning() {
		return ErrAlreadyRunning
	}
	o.store.Reset()
	return nil
}

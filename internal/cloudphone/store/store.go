// Package store is the authoritative in-memory state (spec §4.3): per-phone
// job records, a bounded log ring, workflow status, and derived results.
// Grounded on the accessor shape of internal/provisioner/store/store.go
// (GetJobByID/MarkJobStatus/AppendJobEvent), but backed by a guarded map
// instead of SQLite, per the spec's explicit in-memory-only Non-goal
// (see DESIGN.md "Dropped teacher dependencies").
package store

import (
	"fmt"
	"sync"
	"time"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/pkg/cloudphone"
)

const logRingCapacity = 500

// Store owns every mutable piece of run state. All mutation goes through
// its methods, which are serialized by mu (spec §5: "a single mutex
// protecting the Workflow Store").
type Store struct {
	mu          sync.Mutex
	bus         *bus.Bus
	jobs        map[string]*cloudphone.PhoneJob
	jobOrder    []string
	status      cloudphone.WorkflowStatus
	startedAt   *time.Time
	completedAt *time.Time
	logs        []cloudphone.LogEntry
	runID       string
}

// New constructs an idle Store bound to bus b for publishing mutations.
func New(b *bus.Bus) *Store {
	return &Store{
		bus:    b,
		jobs:   make(map[string]*cloudphone.PhoneJob),
		status: cloudphone.StatusIdle,
	}
}

// Reset empties the store and returns it to idle (spec §4.3 "reset()").
// It is the caller's responsibility to ensure the run is not active
// (enforced by the orchestrator, which owns the running/not-running
// decision; the store itself is mechanism, not policy).
func (s *Store) Reset() {
	s.mu.Lock()
	s.jobs = make(map[string]*cloudphone.PhoneJob)
	s.jobOrder = nil
	s.status = cloudphone.StatusIdle
	s.startedAt = nil
	s.completedAt = nil
	s.logs = nil
	s.runID = ""
	s.mu.Unlock()
	s.bus.Publish(bus.TopicWorkflowStatus, bus.WorkflowStatusEvent{Status: cloudphone.StatusIdle})
}

// Status returns the current workflow status.
func (s *Store) Status() cloudphone.WorkflowStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus transitions the run-level status and publishes the change.
func (s *Store) SetStatus(status cloudphone.WorkflowStatus, errMsg string) {
	now := time.Now().UTC()
	s.mu.Lock()
	s.status = status
	switch status {
	case cloudphone.StatusRunning:
		s.startedAt = &now
	case cloudphone.StatusComplete, cloudphone.StatusStopped:
		s.completedAt = &now
	}
	s.mu.Unlock()
	s.bus.Publish(bus.TopicWorkflowStatus, bus.WorkflowStatusEvent{Status: status, Error: errMsg})
}

// SetRunID records the correlation id for the current run (SPEC_FULL §3).
func (s *Store) SetRunID(id string) {
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
}

// CreateJob inserts a new job record, keyed by envId (spec §3 invariant:
// each envId appears in at most one job per run).
func (s *Store) CreateJob(job *cloudphone.PhoneJob) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.EnvID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("store: job for envId %s already exists", job.EnvID)
	}
	if job.Attempts == nil {
		job.Attempts = make(map[cloudphone.State]int)
	}
	if job.TaskIDs == nil {
		job.TaskIDs = make(map[string]string)
	}
	job.State = cloudphone.StateInit
	s.jobs[job.EnvID] = job
	s.jobOrder = append(s.jobOrder, job.EnvID)
	snap := job.Snapshot()
	s.mu.Unlock()
	s.bus.Publish(bus.TopicPhoneUpdate, snap)
	return nil
}

// GetJob returns a snapshot of the job for envID.
func (s *Store) GetJob(envID string) (cloudphone.PhoneJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[envID]
	if !ok {
		return cloudphone.PhoneJob{}, false
	}
	return job.Snapshot(), true
}

// mutate runs fn against the job under the store's lock, then publishes
// a snapshot. Every exported per-job mutator is built on this so
// publication and mutation never race.
func (s *Store) mutate(envID string, fn func(*cloudphone.PhoneJob)) {
	s.mu.Lock()
	job, ok := s.jobs[envID]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(job)
	snap := job.Snapshot()
	s.mu.Unlock()
	s.bus.Publish(bus.TopicPhoneUpdate, snap)
}

// SetState transitions a job's state (spec §4.4 transitionTo).
func (s *Store) SetState(envID string, state cloudphone.State) {
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.State = state
	})
}

// SetFailed marks a job FAILED with a reason and stamps completedAt
// (spec §4.4 transitionToFailed).
func (s *Store) SetFailed(envID, reason string) {
	now := time.Now().UTC()
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.State = cloudphone.StateFailed
		j.Error = reason
		j.CompletedAt = &now
	})
}

// SetDone marks a job DONE and stamps completedAt.
func (s *Store) SetDone(envID string) {
	now := time.Now().UTC()
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.State = cloudphone.StateDone
		j.CompletedAt = &now
	})
}

// RecordAttempt increments the retry-attempt counter for a state and
// returns the new count (spec §3 invariant attempts[s] <= R).
func (s *Store) RecordAttempt(envID string, state cloudphone.State) int {
	count := 0
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.Attempts[state]++
		count = j.Attempts[state]
	})
	return count
}

// SetRestartReturn records (or, with state=="", clears) the state a job
// should resume once a phone-not-running restart completes.
func (s *Store) SetRestartReturn(envID string, state cloudphone.State) {
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.RestartReturnState = state
	})
}

// SetTaskID records the remote task identifier for a stage.
func (s *Store) SetTaskID(envID, stage, taskID string) {
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.TaskIDs[stage] = taskID
	})
}

// SetProgress updates the current/total step counters (spec §4.4).
func (s *Store) SetProgress(envID string, current, total int) {
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.CurrentStep = current
		j.TotalSteps = total
	})
}

// AppendScreenshot records a captured screenshot on the job.
func (s *Store) AppendScreenshot(envID, label, url string) {
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.Screenshots = append(j.Screenshots, cloudphone.Screenshot{
			Label: label, URL: url, Timestamp: time.Now().UTC(),
		})
	})
}

// SetUsernameScratch updates the custom-strategy username-retry fields.
func (s *Store) SetUsernameScratch(envID string, candidates []string, attempted map[string]bool, current, original string) {
	s.mutate(envID, func(j *cloudphone.PhoneJob) {
		j.UsernameCandidates = candidates
		j.UsernameAttempted = attempted
		j.UsernameCurrent = current
		if original != "" {
			j.UsernameOriginal = original
		}
	})
}

// AppendLog writes a log entry to the bounded ring and publishes it.
func (s *Store) AppendLog(entry cloudphone.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	entry.RunID = s.runID
	s.logs = append(s.logs, entry)
	if len(s.logs) > logRingCapacity {
		s.logs = s.logs[len(s.logs)-logRingCapacity:]
	}
	s.mu.Unlock()
	s.bus.Publish(bus.TopicLog, entry)
}

// GetLogs returns the most recent n entries, newest-first (spec §4.3).
func (s *Store) GetLogs(n int) []cloudphone.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.logs) {
		n = len(s.logs)
	}
	out := make([]cloudphone.LogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = s.logs[len(s.logs)-1-i]
	}
	return out
}

// Jobs returns a snapshot of every job, in creation order.
func (s *Store) Jobs() []cloudphone.PhoneJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cloudphone.PhoneJob, 0, len(s.jobOrder))
	for _, id := range s.jobOrder {
		out = append(out, s.jobs[id].Snapshot())
	}
	return out
}

// GetResultsSummary computes {total, completed, failed, pending} over
// the current jobs (spec §4.3).
func (s *Store) GetResultsSummary() cloudphone.ResultsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := cloudphone.ResultsSummary{Total: len(s.jobs)}
	for _, j := range s.jobs {
		switch j.State {
		case cloudphone.StateDone:
			summary.Completed++
		case cloudphone.StateFailed:
			summary.Failed++
		default:
			summary.Pending++
		}
	}
	if s.startedAt != nil {
		end := time.Now().UTC()
		if s.completedAt != nil {
			end = *s.completedAt
		}
		summary.DurationSeconds = end.Sub(*s.startedAt).Seconds()
	}
	return summary
}

// PublishResults publishes the current results summary on the results
// topic (called by the orchestrator once every job is terminal).
func (s *Store) PublishResults() cloudphone.ResultsSummary {
	summary := s.GetResultsSummary()
	s.bus.Publish(bus.TopicResults, summary)
	return summary
}

// Timestamps returns the run's started/completed times, if set.
func (s *Store) Timestamps() (started, completed *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt, s.completedAt
}

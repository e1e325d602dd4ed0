// Package queue implements the coordinator's Waiting/Working/Done job queues
// and the claim/touch/complete/requeue/scan_timeouts state machine described
// in spec.md §4.1. All mutating operations are serialized under a single
// mutex, matching the teacher's preference for a straightforward lock over a
// lock-free structure — contention here is negligible next to transcode time.
package queue

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"distrip/internal/jobspec"
)

// ErrUnknownJob is returned when an operation names a job not currently in
// Working (or, for Complete, not found at all).
var ErrUnknownJob = &unknownJobError{}

type unknownJobError struct{}

func (*unknownJobError) Error() string { return "job not found" }

// Manager owns the Waiting, Working, and Done collections for one
// coordinator process.
type Manager struct {
	mu sync.Mutex

	waiting []jobspec.Job // LIFO: Claim pops from the tail, matching the
	// source repository's `job_queue.pop()` behavior (spec.md §9).
	working map[uuid.UUID]*workingEntry
	done    []jobspec.Job
}

type workingEntry struct {
	job        jobspec.Job
	assignment jobspec.Assignment
}

// NewManager builds a Manager pre-seeded with the jobs found during the
// input-directory scan.
func NewManager(initial []jobspec.Job) *Manager {
	waiting := make([]jobspec.Job, len(initial))
	copy(waiting, initial)
	return &Manager{
		waiting: waiting,
		working: make(map[uuid.UUID]*workingEntry),
	}
}

// Claim atomically removes one job from Waiting, inserts it into Working
// with a fresh Assignment, and returns it. The second return value is false
// when Waiting is empty.
func (m *Manager) Claim(workerAddress string, now time.Time) (jobspec.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.waiting)
	if n == 0 {
		return jobspec.Job{}, false
	}

	job := m.waiting[n-1]
	m.waiting = m.waiting[:n-1]

	m.working[job.ID] = &workingEntry{
		job: job,
		assignment: jobspec.Assignment{
			WorkerAddress: workerAddress,
			LastHeartbeat: now,
		},
	}
	return job, true
}

// TouchResult is the outcome of Touch.
type TouchResult int

const (
	// TouchOK means the heartbeat was accepted and last_heartbeat updated.
	TouchOK TouchResult = iota
	// TouchUnknown means the job is not Working.
	TouchUnknown
	// TouchReassigned means the job is Working under a different worker
	// address; the assignment was revoked and the job requeued.
	TouchReassigned
)

// Touch updates last_heartbeat for a Working job if workerAddress matches the
// recorded assignment. A mismatch revokes the assignment and requeues the
// job at the tail of Waiting (spec.md §3 invariant).
func (m *Manager) Touch(id uuid.UUID, workerAddress string, now time.Time) TouchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.working[id]
	if !ok {
		return TouchUnknown
	}

	if entry.assignment.WorkerAddress != workerAddress {
		m.requeueLocked(id)
		return TouchReassigned
	}

	entry.assignment.LastHeartbeat = now
	return TouchOK
}

// Complete moves a Working job to Done, returning ErrUnknownJob if it is not
// Working.
func (m *Manager) Complete(id uuid.UUID) (jobspec.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.working[id]
	if !ok {
		return jobspec.Job{}, ErrUnknownJob
	}

	delete(m.working, id)
	m.done = append(m.done, entry.job)
	return entry.job, nil
}

// Requeue removes a job from Working, discards its received_files and
// temp_path contents, and reinserts it at the tail of Waiting. No-op if the
// job is not Working.
func (m *Manager) Requeue(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeueLocked(id)
}

func (m *Manager) requeueLocked(id uuid.UUID) {
	entry, ok := m.working[id]
	if !ok {
		return
	}
	delete(m.working, id)

	job := entry.job
	job.ReceivedFiles = nil
	if job.TempPath != "" {
		_ = os.RemoveAll(job.TempPath)
	}

	m.waiting = append(m.waiting, job)
}

// ScanTimeouts returns the IDs of all Working jobs whose last_heartbeat is
// older than `now - timeout`.
func (m *Manager) ScanTimeouts(now time.Time, timeout time.Duration) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-timeout)
	var timedOut []uuid.UUID
	for id, entry := range m.working {
		if entry.assignment.LastHeartbeat.Before(cutoff) {
			timedOut = append(timedOut, id)
		}
	}
	return timedOut
}

// WorkingJob returns the job currently assigned under id, if any.
func (m *Manager) WorkingJob(id uuid.UUID) (jobspec.Job, jobspec.Assignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.working[id]
	if !ok {
		return jobspec.Job{}, jobspec.Assignment{}, false
	}
	return entry.job, entry.assignment, true
}

// AppendReceivedFile records an uploaded file against a Working job's
// received_files list.
func (m *Manager) AppendReceivedFile(id uuid.UUID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.working[id]
	if !ok {
		return
	}
	entry.job.ReceivedFiles = append(entry.job.ReceivedFiles, path)
}

// Counts reports the current size of each queue, for the heartbeat monitor's
// drained check and for observability.
func (m *Manager) Counts() (waiting, working, done int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting), len(m.working), len(m.done)
}

// Drained reports whether both Waiting and Working are empty.
func (m *Manager) Drained() bool {
	waiting, working, _ := m.Counts()
	return waiting == 0 && working == 0
}

package queue_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distrip/internal/jobspec"
	"distrip/internal/queue"
)

func uuidNew(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func newTestJob(t *testing.T, source string) jobspec.Job {
	t.Helper()
	return jobspec.NewJob(source, source, t.TempDir(), jobspec.RipConfig{}, jobspec.HandbrakeConfig{}, jobspec.FixSet{})
}

func TestClaimPopsFromTail(t *testing.T) {
	jobA := newTestJob(t, "a.iso")
	jobB := newTestJob(t, "b.iso")
	m := queue.NewManager([]jobspec.Job{jobA, jobB})

	got, ok := m.Claim("10.0.0.1", time.Now())
	require.True(t, ok)
	assert.Equal(t, jobB.ID, got.ID, "claim should pop from the tail, like the source repository's list.pop()")
}

func TestClaimEmptyReturnsFalse(t *testing.T) {
	m := queue.NewManager(nil)
	_, ok := m.Claim("10.0.0.1", time.Now())
	assert.False(t, ok)
}

func TestClaimIsExclusive(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	_, ok := m.Claim("10.0.0.1", time.Now())
	require.True(t, ok)

	_, ok = m.Claim("10.0.0.2", time.Now())
	assert.False(t, ok, "a job claimed once must not be claimable again")
}

func TestTouchMismatchRequeues(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	claimed, ok := m.Claim("10.0.0.1", time.Now())
	require.True(t, ok)

	result := m.Touch(claimed.ID, "10.0.0.2", time.Now())
	assert.Equal(t, queue.TouchReassigned, result)

	waiting, working, _ := m.Counts()
	assert.Equal(t, 1, waiting)
	assert.Equal(t, 0, working)
}

func TestTouchMatchUpdatesHeartbeat(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	claimed, ok := m.Claim("10.0.0.1", time.Now())
	require.True(t, ok)

	result := m.Touch(claimed.ID, "10.0.0.1", time.Now())
	assert.Equal(t, queue.TouchOK, result)
}

func TestTouchUnknownJob(t *testing.T) {
	m := queue.NewManager(nil)
	result := m.Touch(uuidNew(t), "10.0.0.1", time.Now())
	assert.Equal(t, queue.TouchUnknown, result)
}

func TestScanTimeoutsRequeuesStaleJobs(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	start := time.Now()
	claimed, ok := m.Claim("10.0.0.1", start)
	require.True(t, ok)

	later := start.Add(40 * time.Second)
	timedOut := m.ScanTimeouts(later, 30*time.Second)
	require.Len(t, timedOut, 1)
	assert.Equal(t, claimed.ID, timedOut[0])

	for _, id := range timedOut {
		m.Requeue(id)
	}

	waiting, working, _ := m.Counts()
	assert.Equal(t, 1, waiting)
	assert.Equal(t, 0, working)
}

func TestScanTimeoutsIgnoresFreshJobs(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	now := time.Now()
	_, ok := m.Claim("10.0.0.1", now)
	require.True(t, ok)

	timedOut := m.ScanTimeouts(now.Add(5*time.Second), 30*time.Second)
	assert.Empty(t, timedOut)
}

func TestRequeueDiscardsReceivedFiles(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	claimed, ok := m.Claim("10.0.0.1", time.Now())
	require.True(t, ok)

	m.AppendReceivedFile(claimed.ID, claimed.TempPath+"/part1.mkv")
	m.Requeue(claimed.ID)

	recovered, ok := m.Claim("10.0.0.2", time.Now())
	require.True(t, ok)
	assert.Empty(t, recovered.ReceivedFiles)
}

func TestCompleteMovesToDone(t *testing.T) {
	job := newTestJob(t, "a.iso")
	m := queue.NewManager([]jobspec.Job{job})

	claimed, ok := m.Claim("10.0.0.1", time.Now())
	require.True(t, ok)

	_, err := m.Complete(claimed.ID)
	require.NoError(t, err)

	_, _, done := m.Counts()
	assert.Equal(t, 1, done)
	assert.True(t, m.Drained())
}

func TestCompleteUnknownJob(t *testing.T) {
	m := queue.NewManager(nil)
	_, err := m.Complete(uuidNew(t))
	assert.ErrorIs(t, err, queue.ErrUnknownJob)
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobStateMachineSafety(t *testing.T) {
	now := time.Now()
	j := NewJob("job-1", "run-1", StageExpansion, 5, nil, 3, now)

	assert.True(t, j.Transition(JobStatusRunning, now))
	assert.True(t, j.Transition(JobStatusCompleted, now))

	// Completed is terminal.
	assert.False(t, j.Transition(JobStatusRunning, now))
	assert.False(t, j.Transition(JobStatusRetrying, now))
}

func TestJobAttemptBoundedByMaxAttempts(t *testing.T) {
	now := time.Now()
	j := NewJob("job-1", "run-1", StageExpansion, 5, nil, 2, now)
	j.Transition(JobStatusRunning, now)
	assert.Equal(t, 1, j.Attempt)
	j.Transition(JobStatusFailed, now)
	j.Transition(JobStatusRetrying, now)
	j.Transition(JobStatusRunning, now)
	assert.Equal(t, 2, j.Attempt)
	assert.LessOrEqual(t, j.Attempt, j.MaxAttempts)
}

func TestReadyToRunRequiresAllDependenciesCompleted(t *testing.T) {
	now := time.Now()
	dep1 := NewJob("dep-1", "run-1", StageExpansion, 5, nil, 3, now)
	dep2 := NewJob("dep-2", "run-1", StageUniverse, 5, nil, 3, now)
	job := NewJob("job-1", "run-1", StageClustering, 5, []string{"dep-1", "dep-2"}, 3, now)

	byID := map[string]*Job{"dep-1": dep1, "dep-2": dep2, "job-1": job}
	assert.False(t, ReadyToRun(job, byID))

	dep1.Transition(JobStatusRunning, now)
	dep1.Transition(JobStatusCompleted, now)
	assert.False(t, ReadyToRun(job, byID))

	dep2.Transition(JobStatusRunning, now)
	dep2.Transition(JobStatusCompleted, now)
	assert.True(t, ReadyToRun(job, byID))
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStateMachineSafety(t *testing.T) {
	now := time.Now()
	r := NewRun("run-1", "owner-1", []string{"social selling"}, "US", "en-US", 100, now)
	require.Equal(t, RunStatusPending, r.Status)

	require.True(t, r.Transition(RunStatusProcessing, now))
	require.True(t, r.Transition(RunStatusCompleted, now))

	// No transition out of a terminal status is permitted.
	assert.False(t, r.Transition(RunStatusProcessing, now))
	assert.False(t, r.Transition(RunStatusFailed, now))
	assert.Equal(t, RunStatusCompleted, r.Status)
}

func TestRunProgressMonotoneWhileProcessing(t *testing.T) {
	now := time.Now()
	r := NewRun("run-1", "owner-1", []string{"seed"}, "US", "en-US", 100, now)
	r.Transition(RunStatusProcessing, now)

	r.SetProgress(10)
	r.SetProgress(40)
	r.SetProgress(25) // attempted decrease must be ignored
	assert.Equal(t, 40.0, r.Progress)

	r.SetProgress(100)
	assert.Equal(t, 100.0, r.Progress)
}

func TestBudgetRemaining(t *testing.T) {
	now := time.Now()
	r := NewRun("run-1", "owner-1", []string{"seed"}, "US", "en-US", 10, now)
	r.APIUsage.Record("metrics", 1, 0, 7.5, false)
	assert.InDelta(t, 2.5, r.BudgetRemaining(), 1e-9)

	r.APIUsage.Record("llm", 1, 500, 5, false)
	assert.Less(t, r.BudgetRemaining(), 0.0)
}

func TestMarkStageCompletedMonotoneGrowth(t *testing.T) {
	now := time.Now()
	r := NewRun("run-1", "o", []string{"s"}, "US", "en", 10, now)
	r.MarkStageCompleted(StageExpansion)
	r.MarkStageCompleted(StageExpansion)
	r.MarkStageCompleted(StageUniverse)
	assert.Equal(t, []Stage{StageExpansion, StageUniverse}, r.CompletedStages)
}

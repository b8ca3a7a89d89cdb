package models

import "time"

// Job is a single orchestrator-visible unit of work for one pipeline stage.
// Expansion may internally fan out to many provider calls, but it is still
// represented by exactly one Job.
type Job struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Stage        Stage     `json:"stage"`
	Priority     int       `json:"priority"` // 1..10
	Status       JobStatus `json:"status"`
	Dependencies []string  `json:"dependencies"` // job IDs

	Attempt     int `json:"attempt"`
	MaxAttempts int `json:"max_attempts"`

	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// jobTransitions enumerates the Job state machine's permitted edges.
var jobTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued: {
		JobStatusRunning:   true,
		JobStatusCancelled: true,
	},
	JobStatusRunning: {
		JobStatusCompleted: true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
		JobStatusRetrying:  true,
	},
	JobStatusRetrying: {
		JobStatusQueued:    true,
		JobStatusRunning:   true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
	},
	JobStatusFailed: {
		JobStatusRetrying: true,
	},
}

// CanTransition reports whether moving from this status to `to` is legal.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	edges, ok := jobTransitions[s]
	if !ok {
		return false
	}
	return edges[to]
}

// NewJob constructs a Job in Queued status.
func NewJob(id, runID string, stage Stage, priority int, deps []string, maxAttempts int, now time.Time) *Job {
	return &Job{
		ID:           id,
		RunID:        runID,
		Stage:        stage,
		Priority:     priority,
		Status:       JobStatusQueued,
		Dependencies: deps,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
	}
}

// Transition moves the job to a new status, returning false and leaving it
// unchanged if the edge is illegal.
func (j *Job) Transition(to JobStatus, now time.Time) bool {
	if !j.Status.CanTransition(to) {
		return false
	}
	j.Status = to
	switch to {
	case JobStatusRunning:
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
		j.Attempt++
	case JobStatusCompleted, JobStatusCancelled:
		j.CompletedAt = &now
	}
	return true
}

// ReadyToRun reports whether every dependency job has completed, making
// this job eligible to enter Running.
func ReadyToRun(j *Job, byID map[string]*Job) bool {
	if j.Attempt >= j.MaxAttempts && j.Status == JobStatusFailed {
		return false
	}
	for _, depID := range j.Dependencies {
		dep, ok := byID[depID]
		if !ok || dep.Status != JobStatusCompleted {
			return false
		}
	}
	return true
}

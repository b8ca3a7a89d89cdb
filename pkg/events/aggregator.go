package events

import (
	"sync"
	"time"

	"github.com/kwforge/pipeline/pkg/models"
)

// emitThreshold is the minimum jump in overall progress, in percentage
// points, required before a new Progress event is emitted for a
// still-running stage. Status transitions (started/completed/failed/
// cancelled) always emit regardless of the threshold.
const emitThreshold = 10

// Aggregator computes a Run's overall progress as the weighted sum of
// its per-stage completion fractions and emits Progress events to a
// Publisher, throttled to emitThreshold-point increments so a
// high-frequency stage (e.g. Expansion's batch-level updates) doesn't
// flood subscribers.
//
// One Aggregator is owned per in-flight Run by the orchestrator.
type Aggregator struct {
	mu      sync.Mutex
	runID   string
	pub     *Publisher
	fracs   map[models.Stage]float64
	emitted int // last overall percentage emitted, -1 before the first emit
}

// NewAggregator creates an Aggregator for a run, publishing through pub.
func NewAggregator(runID string, pub *Publisher) *Aggregator {
	return &Aggregator{
		runID:   runID,
		pub:     pub,
		fracs:   make(map[models.Stage]float64),
		emitted: -1,
	}
}

// UpdateStage records the completion fraction (0..1) of a stage and
// emits a Progress event if the overall progress has advanced by at
// least emitThreshold points, or if status is a lifecycle transition
// (started/completed/failed/cancelled) that must always be visible.
func (a *Aggregator) UpdateStage(stage models.Stage, fraction float64, status, message string, now time.Time) Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	// Batch-level updates can arrive out of order; merge as maxima so a
	// late-arriving earlier fraction (or a retry's reset-to-zero emit)
	// never walks the run's overall progress backwards.
	if fraction > a.fracs[stage] {
		a.fracs[stage] = fraction
	}

	overall := a.overallLocked()
	forceEmit := status != StatusProgress
	evt := NewProgress(a.runID, string(stage), status, overall, message, nil, now)

	if forceEmit || a.emitted < 0 || overall-a.emitted >= emitThreshold || overall == 100 {
		a.emitted = overall
		if a.pub != nil {
			a.pub.Publish(evt)
		}
	}
	return evt
}

// Overall returns the current overall progress percentage (0..100)
// without emitting an event.
func (a *Aggregator) Overall() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overallLocked()
}

func (a *Aggregator) overallLocked() int {
	var sum float64
	for _, s := range models.Stages {
		sum += s.Weight() * a.fracs[s]
	}
	rounded := int(sum + 0.5)
	if rounded > 100 {
		rounded = 100
	}
	return rounded
}

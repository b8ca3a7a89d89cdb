package events

import (
	"encoding/json"
	"log/slog"
)

// Publisher broadcasts Progress events to WebSocket subscribers of a
// run's channel. It has no database dependency: unlike the teacher's
// EventPublisher (which persists to an events table before NOTIFY), the
// Progress Bus is fire-and-forget — the durable record of a run's
// progress lives on the Run itself via the run store, written by the
// orchestrator, not by this package.
type Publisher struct {
	manager *ConnectionManager
}

// NewPublisher creates a new Publisher broadcasting through manager.
func NewPublisher(manager *ConnectionManager) *Publisher {
	return &Publisher{manager: manager}
}

// Publish broadcasts a Progress event on the run's channel.
func (p *Publisher) Publish(evt Progress) {
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("failed to marshal progress event", "run_id", evt.RunID, "error", err)
		return
	}
	p.manager.Broadcast(RunChannel(evt.RunID), payload)
}

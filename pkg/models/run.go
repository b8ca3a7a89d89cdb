package models

import "time"

// ProviderUsage tracks request/token/cost accounting for a single provider
// within a Run, per the "per-provider API usage ledger" supplement.
type ProviderUsage struct {
	Requests int     `json:"requests"`
	Tokens   int64   `json:"tokens"`
	CostUSD  float64 `json:"cost_usd"`
	Errors   int     `json:"errors"`
}

// UsageLedger is the concrete shape of Run.api_usage: per-provider counters
// plus the running total cost used by budget enforcement.
type UsageLedger struct {
	ByProvider map[string]*ProviderUsage `json:"by_provider"`
	TotalCost  float64                   `json:"total_cost"`
}

// NewUsageLedger returns an empty, ready-to-use ledger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{ByProvider: make(map[string]*ProviderUsage)}
}

// Record adds cost/requests/tokens for a provider call. Errors, when true,
// increments the provider's error counter without affecting cost.
func (l *UsageLedger) Record(provider string, requests int, tokens int64, costUSD float64, errored bool) {
	u, ok := l.ByProvider[provider]
	if !ok {
		u = &ProviderUsage{}
		l.ByProvider[provider] = u
	}
	u.Requests += requests
	u.Tokens += tokens
	u.CostUSD += costUSD
	if errored {
		u.Errors++
	}
	l.TotalCost += costUSD
}

// Warning is a structured, non-fatal recovery notice. Every recovered error
// (retry succeeded, mock fallback used, quality gate missed) emits one of
// these to the Progress Bus and the Run's error log — its "no silent
// failures" rule made concrete.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Stage   Stage       `json:"stage"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// ErrorLogEntry records a fatal or recoverable error observed during a Run,
// independent from Warning (which is strictly non-fatal).
type ErrorLogEntry struct {
	Kind    string    `json:"kind"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Run is one end-to-end pipeline execution.
type Run struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"owner_id"`
	Seeds    []string `json:"seeds"` // 1..5, unique
	Market   string   `json:"market"`
	Language string   `json:"language"`

	Status          RunStatus `json:"status"`
	CurrentStage    Stage     `json:"current_stage"`
	CompletedStages []Stage   `json:"completed_stages"`
	Progress        float64   `json:"progress"` // 0..100, monotone while Processing

	APIUsage    *UsageLedger `json:"api_usage"`
	BudgetLimit float64      `json:"budget_limit"`

	// LineageID groups a run with every run it was resumed from/into.
	// A fresh run's LineageID equals its own ID. ParentRunID is nil unless
	// this run was created by Resume.
	LineageID   string  `json:"lineage_id"`
	ParentRunID *string `json:"parent_run_id,omitempty"`

	Warnings []Warning       `json:"warnings,omitempty"`
	ErrorLog []ErrorLogEntry `json:"error_log,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// runTransitions enumerates the Run state machine's permitted edges.
// Resume is modeled separately: it never re-enters a terminal run, it
// creates a new Run with a fresh ID and ParentRunID set.
var runTransitions = map[RunStatus]map[RunStatus]bool{
	RunStatusPending: {
		RunStatusProcessing: true,
		RunStatusCancelled:  true,
		RunStatusFailed:     true,
	},
	RunStatusProcessing: {
		RunStatusCompleted: true,
		RunStatusFailed:    true,
		RunStatusCancelled: true,
	},
}

// CanTransition reports whether moving from this status to `to` is a legal
// edge in the Run state machine. Terminal statuses are sinks: every
// transition out of them is rejected.
func (s RunStatus) CanTransition(to RunStatus) bool {
	if s.IsTerminal() {
		return false
	}
	edges, ok := runTransitions[s]
	if !ok {
		return false
	}
	return edges[to]
}

// NewRun constructs a Run in Pending status with a zeroed usage ledger and
// lineage seeded to its own ID.
func NewRun(id, ownerID string, seeds []string, market, language string, budgetLimit float64, now time.Time) *Run {
	return &Run{
		ID:          id,
		OwnerID:     ownerID,
		Seeds:       seeds,
		Market:      market,
		Language:    language,
		Status:      RunStatusPending,
		APIUsage:    NewUsageLedger(),
		BudgetLimit: budgetLimit,
		LineageID:   id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the run to a new status, returning false (and leaving
// the run unchanged) if the edge is illegal.
func (r *Run) Transition(to RunStatus, now time.Time) bool {
	if !r.Status.CanTransition(to) {
		return false
	}
	r.Status = to
	r.UpdatedAt = now
	switch to {
	case RunStatusProcessing:
		if r.StartedAt == nil {
			r.StartedAt = &now
		}
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		r.CompletedAt = &now
	}
	return true
}

// SetProgress updates Run.Progress, enforcing the monotone-non-decreasing
// invariant while the run is Processing. A decrease is silently clamped to
// the current value rather than applied (property 9: monotone progress).
func (r *Run) SetProgress(p float64) {
	if r.Status != RunStatusProcessing {
		r.Progress = p
		return
	}
	if p > r.Progress {
		r.Progress = p
	}
}

// AddWarning appends a structured warning and its mirrored error-log style
// note is left to the caller (warnings and error log entries are tracked
// independently so a Completed run can still carry a non-empty Warnings list).
func (r *Run) AddWarning(kind WarningKind, stage Stage, message string, now time.Time) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Stage: stage, Message: message, At: now})
}

// AddError appends a fatal/recoverable error to the run's error log.
func (r *Run) AddError(kind string, stage Stage, message string, now time.Time) {
	r.ErrorLog = append(r.ErrorLog, ErrorLogEntry{Kind: kind, Stage: stage, Message: message, At: now})
}

// MarkStageCompleted appends a stage to CompletedStages if not already
// present, preserving the monotone-growth invariant.
func (r *Run) MarkStageCompleted(s Stage) {
	for _, c := range r.CompletedStages {
		if c == s {
			return
		}
	}
	r.CompletedStages = append(r.CompletedStages, s)
}

// BudgetRemaining returns BudgetLimit minus the ledger's running total cost.
// A negative result means the budget has already been exceeded.
func (r *Run) BudgetRemaining() float64 {
	return r.BudgetLimit - r.APIUsage.TotalCost
}

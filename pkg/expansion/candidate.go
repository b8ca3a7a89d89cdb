// Package expansion implements the Universe Expansion Engine:
// Dream100 seed expansion, Tier2/Tier3 fan-out, cross-tier dedup, bulk
// enrichment, intent classification, quality filtering, and smart capping.
package expansion

import (
	"log/slog"

	"github.com/kwforge/pipeline/pkg/models"
)

// orDefaultLog returns log, or slog.Default() if log is nil — the
// expansion stage helpers are also called directly from tests without an
// Engine, so each one guards against a nil logger this way.
func orDefaultLog(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

// CandidateState is a single candidate phrase's position in the expansion
// state machine: Proposed → Deduped → Enriched → Intent-Classified →
// Quality-Filtered → Capped → Accepted | Dropped(reason).
type CandidateState string

const (
	StateProposed         CandidateState = "proposed"
	StateDeduped          CandidateState = "deduped"
	StateEnriched         CandidateState = "enriched"
	StateIntentClassified CandidateState = "intent_classified"
	StateQualityFiltered  CandidateState = "quality_filtered"
	StateCapped           CandidateState = "capped"
	StateAccepted         CandidateState = "accepted"
	StateDropped          CandidateState = "dropped"
)

// DropReason explains why a candidate never reached Accepted.
type DropReason string

const (
	DropReasonDuplicate  DropReason = "duplicate_lower_tier"
	DropReasonLowQuality DropReason = "quality_below_threshold"
	DropReasonCapped     DropReason = "smart_cap_exceeded"
)

// Candidate is one phrase moving through the expansion pipeline. It
// accumulates fields as it advances through states; nothing is ever
// retroactively cleared, so a Dropped candidate still carries whatever
// metrics/intent it acquired before being dropped (useful for diagnostics).
type Candidate struct {
	Phrase       string
	Tier         models.Tier
	ParentPhrase *string // nil only for Dream100 candidates

	State      CandidateState
	DropReason DropReason

	Volume      uint32
	Difficulty  float64
	Trend       float64
	Source      models.ProviderSource
	Confidence  float64
	Synthesized bool // true when metrics came from the synthesized-fallback path, not a live provider

	Intent    models.Intent
	Relevance float64 // seed/LLM-confidence similarity, set at proposal time

	QualityScore float64

	BlendedScoreEstimate float64 // cheap pre-scoring estimate used only for capping order
}

// advance moves the candidate to the given state. It does not validate the
// transition graph — expansion stages run in a fixed sequence by
// construction, so a misordered call is a programmer error that will
// surface immediately in tests rather than silently corrupting state.
func (c *Candidate) advance(s CandidateState) {
	c.State = s
}

// drop marks the candidate Dropped with a reason. A dropped candidate is
// excluded from every subsequent stage's input but remains in the full
// candidate list for processing_stats and diagnostics.
func (c *Candidate) drop(reason DropReason) {
	c.State = StateDropped
	c.DropReason = reason
}

func (c *Candidate) isDropped() bool { return c.State == StateDropped }

// lengthTokens returns the candidate phrase's whitespace-token count, used
// by both the modifier grammar's "discard shorter than 2 tokens" rule and
// the quality score's length penalty.
func lengthTokens(phrase string) int {
	n := 0
	inToken := false
	for _, r := range phrase {
		if r == ' ' {
			inToken = false
			continue
		}
		if !inToken {
			n++
			inToken = true
		}
	}
	return n
}

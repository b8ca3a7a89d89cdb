package models

import (
	"strings"
	"time"
)

// MaxPhraseLength is the hard cap on a normalized phrase's length.
const MaxPhraseLength = 255

// EmbeddingDim is the fixed dimensionality of every embedding vector.
const EmbeddingDim = 1536

// Keyword is the atomic unit produced by expansion and enriched by every
// downstream stage. A Keyword is immutable once Scoring has run for its Run.
type Keyword struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Phrase       string    `json:"phrase"`
	Tier         Tier      `json:"tier"`
	ParentPhrase *string   `json:"parent_phrase,omitempty"`
	Volume       uint32    `json:"volume"`
	Difficulty   float64   `json:"difficulty"` // 0..100
	Intent       Intent    `json:"intent"`
	Relevance    float64   `json:"relevance"` // 0..1
	Trend        float64   `json:"trend"`     // -1..1
	CPC          *float32  `json:"cpc,omitempty"`
	Source       ProviderSource `json:"source,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`

	BlendedScore float64  `json:"blended_score"` // 0..1
	QuickWin     bool     `json:"quick_win"`
	ClusterID    *string  `json:"cluster_id,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	TopSERPURLs  []string `json:"top_serp_urls,omitempty"`

	OverallRank int `json:"overall_rank,omitempty"`
	TierRank    int `json:"tier_rank,omitempty"`
	ClusterRank int `json:"cluster_rank,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizePhrase lower-cases, collapses internal whitespace to single
// spaces, trims the result, and truncates to MaxPhraseLength runes.
// NormalizePhrase is idempotent: NormalizePhrase(NormalizePhrase(x)) == NormalizePhrase(x).
func NormalizePhrase(raw string) string {
	lowered := strings.ToLower(raw)
	fields := strings.Fields(lowered)
	joined := strings.Join(fields, " ")
	runes := []rune(joined)
	if len(runes) > MaxPhraseLength {
		runes = runes[:MaxPhraseLength]
	}
	return strings.TrimSpace(string(runes))
}

// Ease is the inverted-difficulty component used by the scoring engine:
// (100 - difficulty) / 100, clamped to [0,1].
func (k *Keyword) Ease() float64 {
	e := (100 - k.Difficulty) / 100
	if e < 0 {
		return 0
	}
	if e > 1 {
		return 1
	}
	return e
}

// ValidAncestry reports whether this keyword's parent tier strictly
// outranks its own tier, per the ancestry invariant (Dream100 > Tier2 > Tier3).
// A Dream100 keyword (no parent) always satisfies this trivially.
func (k *Keyword) ValidAncestry(parentTier Tier) bool {
	if k.ParentPhrase == nil {
		return k.Tier == TierDream100
	}
	return parentTier.Rank() > k.Tier.Rank()
}

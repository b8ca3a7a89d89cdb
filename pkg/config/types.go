// Package config loads, validates, and exposes the single typed Settings
// record that drives a pipeline Run. Every knob is a named field here
// with an explicit default — no dynamic/type-erased config maps reach
// any pipeline component.
package config

import "time"

// ScoringComponentWeights holds the five weights applied to a tier's
// component scores. Must sum to 1.0 ± 0.01.
type ScoringComponentWeights struct {
	Volume    float64 `yaml:"volume"`
	Intent    float64 `yaml:"intent"`
	Relevance float64 `yaml:"relevance"`
	Trend     float64 `yaml:"trend"`
	Ease      float64 `yaml:"ease"`
}

// Sum returns the total of the five weights.
func (w ScoringComponentWeights) Sum() float64 {
	return w.Volume + w.Intent + w.Relevance + w.Trend + w.Ease
}

// ScoringWeights holds the three tier-conditioned weight profiles.
type ScoringWeights struct {
	Dream100 ScoringComponentWeights `yaml:"dream100"`
	Tier2    ScoringComponentWeights `yaml:"tier2"`
	Tier3    ScoringComponentWeights `yaml:"tier3"`
}

// SeasonalFactor multiplies the blended score for phrases matching a fixed
// set during a calendar window (MM-DD..MM-DD, inclusive, wrapping year
// boundaries not supported — matches the literal start/end fields).
type SeasonalFactor struct {
	Name       string   `yaml:"name"`
	StartMMDD  string   `yaml:"start_mm_dd"`
	EndMMDD    string   `yaml:"end_mm_dd"`
	Multiplier float64  `yaml:"multiplier"` // 0.5..2.0
	Phrases    []string `yaml:"phrases"`
}

// TeamRole enumerates the recognized team member roles.
type TeamRole string

const (
	RoleWriter     TeamRole = "writer"
	RoleEditor     TeamRole = "editor"
	RoleStrategist TeamRole = "strategist"
	RoleDesigner   TeamRole = "designer"
)

// IsValid reports whether the role is one of the four recognized values.
func (r TeamRole) IsValid() bool {
	switch r {
	case RoleWriter, RoleEditor, RoleStrategist, RoleDesigner:
		return true
	default:
		return false
	}
}

// TeamMember is one entry in the roadmap's assignment pool.
type TeamMember struct {
	Name         string     `yaml:"name"`
	Email        string     `yaml:"email"`
	Role         TeamRole   `yaml:"role"`
	Capacity     int        `yaml:"capacity"` // 1..50
	Specialties  []string   `yaml:"specialties,omitempty"`
	Unavailable  []string   `yaml:"unavailable,omitempty"` // YYYY-MM-DD
}

// Settings is the single typed record covering every recognized
// configuration option from  Unknown YAML fields are rejected by
// the loader (yaml.v3's KnownFields via a strict decoder).
type Settings struct {
	Market   string `yaml:"market"`
	Language string `yaml:"language"`

	MaxTotalKeywords int `yaml:"max_total_keywords"` // 100..50000, default 10000
	MaxDream100      int `yaml:"max_dream100"`       // 10..200, default 100
	MaxTier2PerDream  int `yaml:"max_tier2_per_dream"` // 5..20, default 10
	MaxTier3PerTier2  int `yaml:"max_tier3_per_tier2"` // 5..20, default 10

	EnableCompetitorScraping  bool `yaml:"enable_competitor_scraping"`
	EnableSERPAnalysis        bool `yaml:"enable_serp_analysis"`
	EnableSemanticVariations  bool `yaml:"enable_semantic_variations"`

	SimilarityThreshold float64 `yaml:"similarity_threshold"` // 0.1..0.9, default 0.72
	MinClusterSize      int     `yaml:"min_cluster_size"`     // >=2, default 3
	MaxClusters         int     `yaml:"max_clusters"`         // default 100
	IntentWeight        float64 `yaml:"intent_weight"`
	SemanticWeight      float64 `yaml:"semantic_weight"`

	QuickWinThreshold float64 `yaml:"quick_win_threshold"` // 0.5..0.9, default 0.7
	QualityThreshold  float64 `yaml:"quality_threshold"`   // default 0.6

	ScoringWeights  ScoringWeights   `yaml:"scoring_weights"`
	SeasonalFactors []SeasonalFactor `yaml:"seasonal_factors,omitempty"`

	PostsPerMonth     int  `yaml:"posts_per_month"`     // 1..100, default 20
	DurationMonths    int  `yaml:"duration_months"`     // 1..24
	PillarRatio       float64 `yaml:"pillar_ratio"`     // 0.1..0.9, default 0.3
	QuickWinPriority  bool `yaml:"quick_win_priority"`

	TeamMembers []TeamMember `yaml:"team_members"`

	BudgetLimit float64 `yaml:"budget_limit"` // >=10

	EmbeddingBatchSize int `yaml:"embedding_batch_size"` // default 100

	StageTimeouts StageTimeouts `yaml:"stage_timeouts,omitempty"`

	QualityGates QualityGateConfig `yaml:"quality_gates,omitempty"`
}

// StageTimeouts holds per-stage soft timeouts.
type StageTimeouts struct {
	Expansion  time.Duration `yaml:"expansion"`
	Universe   time.Duration `yaml:"universe"`
	Clustering time.Duration `yaml:"clustering"`
	Scoring    time.Duration `yaml:"scoring"`
	Roadmap    time.Duration `yaml:"roadmap"`
}

// QualityGateConfig toggles and configures the optional quality gates.
type QualityGateConfig struct {
	Enabled bool `yaml:"enabled"`
	Strict  bool `yaml:"strict"` // gate failures abort the run instead of warning
}

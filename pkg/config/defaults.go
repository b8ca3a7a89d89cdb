package config

import "time"

// Default weight profiles. Dream100 leans on relevance/intent (broad
// discovery); Tier3 leans harder on ease (long-tail, low-competition wins).
var defaultScoringWeights = ScoringWeights{
	Dream100: ScoringComponentWeights{Volume: 0.30, Intent: 0.25, Relevance: 0.25, Trend: 0.10, Ease: 0.10},
	Tier2:    ScoringComponentWeights{Volume: 0.25, Intent: 0.20, Relevance: 0.20, Trend: 0.10, Ease: 0.25},
	Tier3:    ScoringComponentWeights{Volume: 0.15, Intent: 0.15, Relevance: 0.15, Trend: 0.05, Ease: 0.50},
}

// Defaults returns a Settings record with every documented default
// applied, ready to be overridden field-by-field by a loaded YAML
// file and then validated.
func Defaults() Settings {
	return Settings{
		Market:   "US",
		Language: "en",

		MaxTotalKeywords: 10000,
		MaxDream100:      100,
		MaxTier2PerDream:  10,
		MaxTier3PerTier2:  10,

		SimilarityThreshold: 0.72,
		MinClusterSize:      3,
		MaxClusters:         100,
		IntentWeight:        0.5,
		SemanticWeight:      0.5,

		QuickWinThreshold: 0.7,
		QualityThreshold:  0.6,

		ScoringWeights: defaultScoringWeights,

		PostsPerMonth:  20,
		DurationMonths: 3,
		PillarRatio:    0.3,

		BudgetLimit: 10,

		EmbeddingBatchSize: 100,

		StageTimeouts: StageTimeouts{
			Expansion:  30 * time.Minute,
			Universe:   45 * time.Minute,
			Clustering: 30 * time.Minute,
			Scoring:    20 * time.Minute,
			Roadmap:    15 * time.Minute,
		},

		QualityGates: QualityGateConfig{Enabled: true, Strict: false},
	}
}

// ApplyDefaults fills zero-valued fields on s with Defaults()'s values.
// Used by the loader after YAML decode so a settings file only needs to
// specify overrides.
func ApplyDefaults(s *Settings) {
	d := Defaults()

	if s.Market == "" {
		s.Market = d.Market
	}
	if s.Language == "" {
		s.Language = d.Language
	}
	if s.MaxTotalKeywords == 0 {
		s.MaxTotalKeywords = d.MaxTotalKeywords
	}
	if s.MaxDream100 == 0 {
		s.MaxDream100 = d.MaxDream100
	}
	if s.MaxTier2PerDream == 0 {
		s.MaxTier2PerDream = d.MaxTier2PerDream
	}
	if s.MaxTier3PerTier2 == 0 {
		s.MaxTier3PerTier2 = d.MaxTier3PerTier2
	}
	if s.SimilarityThreshold == 0 {
		s.SimilarityThreshold = d.SimilarityThreshold
	}
	if s.MinClusterSize == 0 {
		s.MinClusterSize = d.MinClusterSize
	}
	if s.MaxClusters == 0 {
		s.MaxClusters = d.MaxClusters
	}
	if s.IntentWeight == 0 && s.SemanticWeight == 0 {
		s.IntentWeight = d.IntentWeight
		s.SemanticWeight = d.SemanticWeight
	}
	if s.QuickWinThreshold == 0 {
		s.QuickWinThreshold = d.QuickWinThreshold
	}
	if s.QualityThreshold == 0 {
		s.QualityThreshold = d.QualityThreshold
	}
	if s.ScoringWeights.Dream100.Sum() == 0 {
		s.ScoringWeights.Dream100 = d.ScoringWeights.Dream100
	}
	if s.ScoringWeights.Tier2.Sum() == 0 {
		s.ScoringWeights.Tier2 = d.ScoringWeights.Tier2
	}
	if s.ScoringWeights.Tier3.Sum() == 0 {
		s.ScoringWeights.Tier3 = d.ScoringWeights.Tier3
	}
	if s.PostsPerMonth == 0 {
		s.PostsPerMonth = d.PostsPerMonth
	}
	if s.DurationMonths == 0 {
		s.DurationMonths = d.DurationMonths
	}
	if s.PillarRatio == 0 {
		s.PillarRatio = d.PillarRatio
	}
	if s.BudgetLimit == 0 {
		s.BudgetLimit = d.BudgetLimit
	}
	if s.EmbeddingBatchSize == 0 {
		s.EmbeddingBatchSize = d.EmbeddingBatchSize
	}
	if s.StageTimeouts == (StageTimeouts{}) {
		s.StageTimeouts = d.StageTimeouts
	}
}

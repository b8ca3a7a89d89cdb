package config

import "fmt"

// Validator validates a Settings record comprehensively, accumulating every
// violation it finds rather than stopping at the first — a Run submitted
// with several bad fields should report all of them in one pass.
type Validator struct {
	settings *Settings
	errs     []error
}

// NewValidator creates a validator for the given settings.
func NewValidator(s *Settings) *Validator {
	return &Validator{settings: s}
}

// ValidateAll runs every check and returns a single joined error, or nil if
// the settings are clean.
func (v *Validator) ValidateAll() error {
	v.validateRanges()
	v.validateWeights()
	v.validateClustering()
	v.validateTeam()
	v.validateSeasonal()

	if len(v.errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d validation error(s)", len(v.errs))
	for _, e := range v.errs {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%w: %s", ErrValidationFailed, msg)
}

func (v *Validator) fail(field string, value any, format string, args ...any) {
	v.errs = append(v.errs, NewValidationError(field, value, fmt.Errorf(format, args...)))
}

func (v *Validator) validateRanges() {
	s := v.settings

	if s.MaxTotalKeywords < 100 || s.MaxTotalKeywords > 50000 {
		v.fail("max_total_keywords", s.MaxTotalKeywords, "must be in [100,50000]")
	}
	if s.MaxDream100 < 10 || s.MaxDream100 > 200 {
		v.fail("max_dream100", s.MaxDream100, "must be in [10,200]")
	}
	if s.MaxTier2PerDream < 5 || s.MaxTier2PerDream > 20 {
		v.fail("max_tier2_per_dream", s.MaxTier2PerDream, "must be in [5,20]")
	}
	if s.MaxTier3PerTier2 < 5 || s.MaxTier3PerTier2 > 20 {
		v.fail("max_tier3_per_tier2", s.MaxTier3PerTier2, "must be in [5,20]")
	}
	if s.QuickWinThreshold < 0.5 || s.QuickWinThreshold > 0.9 {
		v.fail("quick_win_threshold", s.QuickWinThreshold, "must be in [0.5,0.9]")
	}
	if s.PostsPerMonth < 1 || s.PostsPerMonth > 100 {
		v.fail("posts_per_month", s.PostsPerMonth, "must be in [1,100]")
	}
	if s.DurationMonths < 1 || s.DurationMonths > 24 {
		v.fail("duration_months", s.DurationMonths, "must be in [1,24]")
	}
	if s.PillarRatio < 0.1 || s.PillarRatio > 0.9 {
		v.fail("pillar_ratio", s.PillarRatio, "must be in [0.1,0.9]")
	}
	if s.BudgetLimit < 10 {
		v.fail("budget_limit", s.BudgetLimit, "must be >= 10")
	}
}

func (v *Validator) validateWeights() {
	check := func(field string, w ScoringComponentWeights) {
		sum := w.Sum()
		if sum < 0.99 || sum > 1.01 {
			v.fail(field, sum, "five component weights must sum to 1.0 +/- 0.01, got %f", sum)
		}
		for name, val := range map[string]float64{
			"volume": w.Volume, "intent": w.Intent, "relevance": w.Relevance,
			"trend": w.Trend, "ease": w.Ease,
		} {
			if val < 0 {
				v.fail(field+"."+name, val, "weight must be nonnegative")
			}
		}
	}
	check("scoring_weights.dream100", v.settings.ScoringWeights.Dream100)
	check("scoring_weights.tier2", v.settings.ScoringWeights.Tier2)
	check("scoring_weights.tier3", v.settings.ScoringWeights.Tier3)
}

func (v *Validator) validateClustering() {
	s := v.settings
	if s.SimilarityThreshold < 0.1 || s.SimilarityThreshold > 0.9 {
		v.fail("similarity_threshold", s.SimilarityThreshold, "must be in [0.1,0.9]")
	}
	if s.MinClusterSize < 2 {
		v.fail("min_cluster_size", s.MinClusterSize, "must be >= 2")
	}
	sum := s.IntentWeight + s.SemanticWeight
	if sum < 0.99 || sum > 1.01 {
		v.fail("intent_weight+semantic_weight", sum, "must sum to ~1.0")
	}
}

func (v *Validator) validateTeam() {
	for i, m := range v.settings.TeamMembers {
		field := fmt.Sprintf("team_members[%d]", i)
		if m.Name == "" {
			v.fail(field+".name", m.Name, "must not be empty")
		}
		if !m.Role.IsValid() {
			v.fail(field+".role", m.Role, "unrecognized role")
		}
		if m.Capacity < 1 || m.Capacity > 50 {
			v.fail(field+".capacity", m.Capacity, "must be in [1,50]")
		}
	}
}

func (v *Validator) validateSeasonal() {
	for i, f := range v.settings.SeasonalFactors {
		field := fmt.Sprintf("seasonal_factors[%d]", i)
		if f.Multiplier < 0.5 || f.Multiplier > 2.0 {
			v.fail(field+".multiplier", f.Multiplier, "must be in [0.5,2.0]")
		}
	}
}

// ValidateSeeds enforces the orchestrator-level seed cardinality rule
// (hard cap 1..20 here) plus the tighter data-model cap (<=5).
// Kept separate from ValidateAll because seeds belong to the Run, not to
// Settings.
func ValidateSeeds(seeds []string) error {
	if len(seeds) < 1 || len(seeds) > 20 {
		return fmt.Errorf("%w: seeds count %d outside [1,20]", ErrValidationFailed, len(seeds))
	}
	if len(seeds) > 5 {
		return fmt.Errorf("%w: seeds count %d exceeds data-model cap of 5", ErrValidationFailed, len(seeds))
	}
	seen := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		if s == "" {
			return fmt.Errorf("%w: seed phrase must not be empty", ErrValidationFailed)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate seed %q", ErrValidationFailed, s)
		}
		seen[s] = true
	}
	return nil
}

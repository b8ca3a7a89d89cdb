package expansion

import (
	"context"
	"log/slog"

	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

// generateTier3 applies the question-pattern, long-tail, and optional
// SERP-overlap strategies from  Stage Universe → Tier3 to one
// Tier2 phrase.
func generateTier3(ctx context.Context, metrics providers.MetricsProvider, tier2 *Candidate, enableSERP bool, maxPerTier2 int, log *slog.Logger) []*Candidate {
	log = orDefaultLog(log)
	phrases := applyQuestionPatterns(tier2.Phrase)
	phrases = append(phrases, applyLongTail(tier2.Phrase)...)

	if enableSERP && metrics != nil {
		suggestions, err := metrics.GetKeywordSuggestions(ctx, tier2.Phrase, maxPerTier2, providers.MetricsOpts{})
		if err != nil {
			log.Warn("tier3 serp-overlap mining failed", "parent", tier2.Phrase, "err", err)
		} else {
			for _, s := range suggestions {
				phrases = append(phrases, models.NormalizePhrase(s.Phrase))
			}
		}
	}

	phrases = dedupeStrings(phrases)
	if maxPerTier2 > 0 && len(phrases) > maxPerTier2 {
		phrases = phrases[:maxPerTier2]
	}

	parent := tier2.Phrase
	out := make([]*Candidate, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, &Candidate{
			Phrase:       p,
			Tier:         models.TierTier3,
			ParentPhrase: &parent,
			State:        StateProposed,
			Relevance:    tier2.Relevance,
		})
	}
	return out
}

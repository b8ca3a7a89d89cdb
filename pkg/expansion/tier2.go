package expansion

import (
	"context"
	"log/slog"

	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

// generateTier2 applies the three parallel strategies from  Stage
// Universe → Tier2 to one Dream100 phrase and returns their union, each
// candidate tagged with parent_phrase = dream.Phrase. A failure in any one
// strategy is logged and skipped rather than failing the whole call — the
// other strategies still contribute candidates.
func generateTier2(ctx context.Context, llm providers.LLMProvider, metrics providers.MetricsProvider, dream *Candidate, year int, enableSERP bool, maxPerDream int, log *slog.Logger) []*Candidate {
	log = orDefaultLog(log)
	phrases := make([]string, 0, maxPerDream*2)

	if llm != nil {
		expanded, err := semanticExpand(ctx, llm, dream.Phrase, maxPerDream)
		if err != nil {
			log.Warn("tier2 llm semantic expansion failed", "parent", dream.Phrase, "err", err)
		} else {
			phrases = append(phrases, expanded...)
		}
	}

	phrases = append(phrases, applyModifiers(dream.Phrase, year)...)

	if enableSERP && metrics != nil {
		suggestions, err := metrics.GetKeywordSuggestions(ctx, dream.Phrase, maxPerDream, providers.MetricsOpts{})
		if err != nil {
			log.Warn("tier2 serp-overlap mining failed", "parent", dream.Phrase, "err", err)
		} else {
			for _, s := range suggestions {
				phrases = append(phrases, models.NormalizePhrase(s.Phrase))
			}
		}
	}

	phrases = dedupeStrings(phrases)
	parent := dream.Phrase
	out := make([]*Candidate, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, &Candidate{
			Phrase:       p,
			Tier:         models.TierTier2,
			ParentPhrase: &parent,
			State:        StateProposed,
			Relevance:    dream.Relevance,
		})
	}
	return out
}

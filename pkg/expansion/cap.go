package expansion

import (
	"sort"

	"github.com/kwforge/pipeline/pkg/models"
)

// DefaultTargetTotalCount mirrors config.Settings.MaxTotalKeywords's default.
const DefaultTargetTotalCount = 10000

// tierRatioWeights is the approximate Dream100:Tier2:Tier3 target ratio
// (1:10:≥70) used by smart capping, expressed as proportional weights.
var tierRatioWeights = map[models.Tier]int{
	models.TierDream100: 1,
	models.TierTier2:    10,
	models.TierTier3:    70,
}

// computeBlendedScoreEstimate is the cheap pre-scoring estimate used only
// to order candidates for capping — distinct from the Scoring Engine's
// blended_score, which runs later over the accepted universe with the full
// weight profile and seasonal adjustment.
func computeBlendedScoreEstimate(c *Candidate) float64 {
	ease := (100 - c.Difficulty) / 100
	if ease < 0 {
		ease = 0
	}
	if ease > 1 {
		ease = 1
	}
	normVolume := float64(c.Volume) / 10000
	if normVolume > 1 {
		normVolume = 1
	}
	return 0.35*normVolume + 0.25*c.Intent.ComponentScore() + 0.25*c.Relevance + 0.15*ease
}

// applySmartCap implements  Smart capping: if the post-filter
// universe exceeds targetTotal, keep the top candidates by
// blended_score_estimate while preserving the target tier ratio and
// ensuring every surviving Dream100 parent retains at least one Tier2
// child where one exists.
func applySmartCap(candidates []*Candidate, targetTotal int) {
	if targetTotal <= 0 {
		targetTotal = DefaultTargetTotalCount
	}
	live := liveCandidates(candidates)
	for _, c := range live {
		c.BlendedScoreEstimate = computeBlendedScoreEstimate(c)
	}

	if len(live) <= targetTotal {
		for _, c := range live {
			c.advance(StateCapped)
			c.advance(StateAccepted)
		}
		return
	}

	byTier := map[models.Tier][]*Candidate{}
	for _, c := range live {
		byTier[c.Tier] = append(byTier[c.Tier], c)
	}
	for _, bucket := range byTier {
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].BlendedScoreEstimate != bucket[j].BlendedScoreEstimate {
				return bucket[i].BlendedScoreEstimate > bucket[j].BlendedScoreEstimate
			}
			return bucket[i].Phrase < bucket[j].Phrase
		})
	}

	totalWeight := tierRatioWeights[models.TierDream100] + tierRatioWeights[models.TierTier2] + tierRatioWeights[models.TierTier3]
	quota := make(map[models.Tier]int, 3)
	for _, tier := range []models.Tier{models.TierDream100, models.TierTier2, models.TierTier3} {
		q := targetTotal * tierRatioWeights[tier] / totalWeight
		if q > len(byTier[tier]) {
			q = len(byTier[tier])
		}
		quota[tier] = q
	}
	// Redistribute any shortfall (a tier with fewer candidates than its
	// quota) to Tier3, which absorbs the bulk of the universe.
	assigned := quota[models.TierDream100] + quota[models.TierTier2] + quota[models.TierTier3]
	if remaining := targetTotal - assigned; remaining > 0 {
		extra := remaining
		if extra > len(byTier[models.TierTier3])-quota[models.TierTier3] {
			extra = len(byTier[models.TierTier3]) - quota[models.TierTier3]
		}
		if extra > 0 {
			quota[models.TierTier3] += extra
		}
	}

	accepted := make(map[string]bool, targetTotal)
	for _, tier := range []models.Tier{models.TierDream100, models.TierTier2, models.TierTier3} {
		bucket := byTier[tier]
		n := quota[tier]
		if n > len(bucket) {
			n = len(bucket)
		}
		for i := 0; i < n; i++ {
			accepted[bucket[i].Phrase] = true
		}
	}

	ensureDreamParentsRetainChild(byTier, accepted)

	for _, c := range live {
		if accepted[c.Phrase] {
			c.advance(StateCapped)
			c.advance(StateAccepted)
		} else {
			c.drop(DropReasonCapped)
		}
	}
}

// ensureDreamParentsRetainChild implements the "every Dream100 parent
// retains at least one Tier2 child where possible" guarantee: for each
// accepted Dream100 phrase with zero accepted Tier2 children, it promotes
// that parent's best-scoring Tier2 child, evicting the weakest already
// accepted Tier2 candidate belonging to a different, already-represented
// parent to stay within the Tier2 quota.
func ensureDreamParentsRetainChild(byTier map[models.Tier][]*Candidate, accepted map[string]bool) {
	tier2ByParent := make(map[string][]*Candidate)
	for _, c := range byTier[models.TierTier2] {
		if c.ParentPhrase != nil {
			tier2ByParent[*c.ParentPhrase] = append(tier2ByParent[*c.ParentPhrase], c)
		}
	}

	acceptedParents := make(map[string]bool)
	acceptedChildCount := make(map[string]int)
	var acceptedTier2 []*Candidate
	for _, c := range byTier[models.TierTier2] {
		if accepted[c.Phrase] && c.ParentPhrase != nil {
			acceptedParents[*c.ParentPhrase] = true
			acceptedChildCount[*c.ParentPhrase]++
			acceptedTier2 = append(acceptedTier2, c)
		}
	}
	sort.SliceStable(acceptedTier2, func(i, j int) bool {
		return acceptedTier2[i].BlendedScoreEstimate < acceptedTier2[j].BlendedScoreEstimate
	})

	evictCursor := 0
	for _, dream := range byTier[models.TierDream100] {
		if !accepted[dream.Phrase] {
			continue
		}
		children := tier2ByParent[dream.Phrase]
		if len(children) == 0 || acceptedParents[dream.Phrase] {
			continue
		}
		best := children[0]
		for _, ch := range children[1:] {
			if ch.BlendedScoreEstimate > best.BlendedScoreEstimate {
				best = ch
			}
		}
		if accepted[best.Phrase] {
			continue
		}

		for evictCursor < len(acceptedTier2) {
			victim := acceptedTier2[evictCursor]
			evictCursor++
			if !accepted[victim.Phrase] {
				continue
			}
			// Never orphan another parent: only evict a child whose parent
			// keeps at least one other accepted Tier2 child.
			if victim.ParentPhrase != nil && acceptedChildCount[*victim.ParentPhrase] < 2 {
				continue
			}
			accepted[victim.Phrase] = false
			if victim.ParentPhrase != nil {
				acceptedChildCount[*victim.ParentPhrase]--
			}
			break
		}
		accepted[best.Phrase] = true
		acceptedParents[dream.Phrase] = true
		if best.ParentPhrase != nil {
			acceptedChildCount[*best.ParentPhrase]++
		}
	}
}

package expansion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kwforge/pipeline/pkg/models"
)

func TestDedupeCrossTierKeepsHighestTier(t *testing.T) {
	parent := "seo tools"
	candidates := []*Candidate{
		{Phrase: "best seo tool", Tier: models.TierDream100},
		{Phrase: "best seo tool", Tier: models.TierTier2, ParentPhrase: &parent},
		{Phrase: "unique tier3 phrase", Tier: models.TierTier3, ParentPhrase: &parent},
	}

	dedupeCrossTier(candidates)

	assert.Equal(t, StateDeduped, candidates[0].State)
	assert.Equal(t, StateDropped, candidates[1].State)
	assert.Equal(t, DropReasonDuplicate, candidates[1].DropReason)
	assert.Equal(t, StateDeduped, candidates[2].State)
}

func TestDedupeCrossTierNoDuplicatesLeavesAllDeduped(t *testing.T) {
	candidates := []*Candidate{
		{Phrase: "a", Tier: models.TierDream100},
		{Phrase: "b", Tier: models.TierTier2},
	}
	dedupeCrossTier(candidates)
	for _, c := range candidates {
		assert.Equal(t, StateDeduped, c.State)
	}
}

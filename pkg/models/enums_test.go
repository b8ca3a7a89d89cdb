package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageWeightsSumToOneHundred(t *testing.T) {
	var sum float64
	for _, s := range Stages {
		sum += s.Weight()
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestTierRankOrdering(t *testing.T) {
	assert.Greater(t, TierDream100.Rank(), TierTier2.Rank())
	assert.Greater(t, TierTier2.Rank(), TierTier3.Rank())
}

func TestStageIndexOrdering(t *testing.T) {
	assert.Less(t, StageExpansion.Index(), StageUniverse.Index())
	assert.Less(t, StageUniverse.Index(), StageClustering.Index())
	assert.Less(t, StageClustering.Index(), StageScoring.Index())
	assert.Less(t, StageScoring.Index(), StageRoadmap.Index())
}

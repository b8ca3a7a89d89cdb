package expansion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyQualityFilterDropsBelowThreshold(t *testing.T) {
	strong := &Candidate{Phrase: "best seo guide", Relevance: 0.9, Confidence: 0.9}
	weak := &Candidate{Phrase: "x y z a b c d e f g h", Relevance: 0.1, Confidence: 0.1}

	applyQualityFilter([]*Candidate{strong, weak}, 0.6)

	assert.Equal(t, StateQualityFiltered, strong.State)
	assert.Equal(t, StateDropped, weak.State)
	assert.Equal(t, DropReasonLowQuality, weak.DropReason)
}

func TestApplyQualityFilterSkipsAlreadyDropped(t *testing.T) {
	dropped := &Candidate{Phrase: "x", State: StateDropped, DropReason: DropReasonDuplicate}
	applyQualityFilter([]*Candidate{dropped}, 0.6)
	assert.Equal(t, DropReasonDuplicate, dropped.DropReason, "quality filter must not overwrite an earlier drop reason")
}

func TestComputeQualityScorePenalizesLengthOutsideRange(t *testing.T) {
	short := &Candidate{Phrase: "seo", Relevance: 1, Confidence: 1}
	ideal := &Candidate{Phrase: "best seo tools for small business", Relevance: 1, Confidence: 1}
	assert.Less(t, computeQualityScore(short), computeQualityScore(ideal))
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhraseIdempotent(t *testing.T) {
	inputs := []string{
		"  Best   CRM   Software  ",
		"ALREADY LOWER",
		"single",
		"",
		"Tabs\tand\nnewlines   mixed",
	}
	for _, in := range inputs {
		once := NormalizePhrase(in)
		twice := NormalizePhrase(once)
		assert.Equal(t, once, twice, "NormalizePhrase must be idempotent for %q", in)
	}
}

func TestNormalizePhraseCollapsesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "best crm software", NormalizePhrase("  Best   CRM   Software  "))
}

func TestNormalizePhraseTruncatesToMaxLength(t *testing.T) {
	long := make([]byte, MaxPhraseLength+50)
	for i := range long {
		long[i] = 'a'
	}
	got := NormalizePhrase(string(long))
	assert.LessOrEqual(t, len([]rune(got)), MaxPhraseLength)
}

func TestKeywordEaseClampedToUnitInterval(t *testing.T) {
	k := &Keyword{Difficulty: -10}
	assert.Equal(t, 1.0, k.Ease())
	k.Difficulty = 150
	assert.Equal(t, 0.0, k.Ease())
	k.Difficulty = 30
	assert.InDelta(t, 0.7, k.Ease(), 1e-9)
}

func TestValidAncestry(t *testing.T) {
	parent := "seed phrase"
	dream := &Keyword{Tier: TierDream100}
	assert.True(t, dream.ValidAncestry(""))

	tier2 := &Keyword{Tier: TierTier2, ParentPhrase: &parent}
	assert.True(t, tier2.ValidAncestry(TierDream100))
	assert.False(t, tier2.ValidAncestry(TierTier2))

	tier3 := &Keyword{Tier: TierTier3, ParentPhrase: &parent}
	assert.True(t, tier3.ValidAncestry(TierTier2))
	assert.False(t, tier3.ValidAncestry(TierTier3))
}

func TestIntentComponentScore(t *testing.T) {
	assert.Equal(t, 1.0, IntentTransactional.ComponentScore())
	assert.Equal(t, 0.6, Intent("bogus").ComponentScore())
}

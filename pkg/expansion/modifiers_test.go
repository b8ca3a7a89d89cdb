package expansion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyModifiersDiscardsShortPhrases(t *testing.T) {
	out := applyModifiers("seo", 2026)
	for _, phrase := range out {
		assert.GreaterOrEqual(t, lengthTokens(phrase), 2)
	}
	assert.Contains(t, out, "best seo")
	assert.Contains(t, out, "seo vs alternatives")
	assert.Contains(t, out, "seo 2026")
}

func TestApplyQuestionPatternsAndLongTail(t *testing.T) {
	q := applyQuestionPatterns("link building")
	assert.Contains(t, q, "what is link building")
	assert.Contains(t, q, "how to link building")

	lt := applyLongTail("link building")
	assert.Contains(t, lt, "benefits of link building")
}

func TestDedupeStringsPreservesOrderAndDropsBlank(t *testing.T) {
	out := dedupeStrings([]string{"a", "", "b", "a", " ", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestLengthTokens(t *testing.T) {
	assert.Equal(t, 1, lengthTokens("seo"))
	assert.Equal(t, 3, lengthTokens("best seo guide"))
	assert.Equal(t, 0, lengthTokens(""))
}

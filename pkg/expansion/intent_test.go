package expansion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

func TestClassifyIntentMergesByPhraseAndDefaultsMissing(t *testing.T) {
	llm := &stubLLM{
		chat: func(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
			return jsonResponse(t, intentLLMResponse{Results: []struct {
				Phrase string `json:"phrase"`
				Intent string `json:"intent"`
			}{
				{Phrase: "buy seo software", Intent: "transactional"},
			}}), nil
		},
	}

	candidates := []*Candidate{
		{Phrase: "buy seo software"},
		{Phrase: "what is seo"}, // absent from the LLM response
	}
	classifyIntent(context.Background(), llm, candidates, 10, nil)

	assert.Equal(t, models.IntentTransactional, candidates[0].Intent)
	assert.Equal(t, models.IntentInformational, candidates[1].Intent)
	for _, c := range candidates {
		assert.Equal(t, StateIntentClassified, c.State)
	}
}

func TestClassifyIntentBatchFailureDefaultsEntireBatch(t *testing.T) {
	llm := &stubLLM{
		chat: func(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
			return providers.ChatResponse{}, assertError{}
		},
	}
	candidates := []*Candidate{{Phrase: "a"}, {Phrase: "b"}}
	classifyIntent(context.Background(), llm, candidates, 10, nil)
	for _, c := range candidates {
		assert.Equal(t, models.IntentInformational, c.Intent)
	}
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

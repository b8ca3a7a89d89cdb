package expansion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

// DefaultIntentBatchSize is the default batch size for LLM intent
// classification calls ( "in batches of up to N phrases").
const DefaultIntentBatchSize = 50

var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"phrase": map[string]any{"type": "string"},
					"intent": map[string]any{"type": "string", "enum": []string{"transactional", "commercial", "informational", "navigational"}},
				},
				"required": []string{"phrase", "intent"},
			},
		},
	},
	"required": []string{"results"},
}

type intentLLMResponse struct {
	Results []struct {
		Phrase string `json:"phrase"`
		Intent string `json:"intent"`
	} `json:"results"`
}

// classifyIntent classifies every live candidate's search intent in
// batches, merging results by phrase string. A phrase missing from the
// response (dropped by the model, or a failed batch) defaults to
// Informational ( Intent classification).
func classifyIntent(ctx context.Context, llm providers.LLMProvider, candidates []*Candidate, batchSize int, log *slog.Logger) {
	if batchSize <= 0 {
		batchSize = DefaultIntentBatchSize
	}
	log = orDefaultLog(log)
	live := liveCandidates(candidates)

	for i := 0; i < len(live); i += batchSize {
		end := i + batchSize
		if end > len(live) {
			end = len(live)
		}
		batch := live[i:end]

		intents, err := classifyIntentBatch(ctx, llm, batch)
		if err != nil {
			log.Warn("intent classification batch failed, defaulting to informational", "batch_size", len(batch), "err", err)
		}
		for _, c := range batch {
			if intent, ok := intents[c.Phrase]; ok && models.Intent(intent).IsValid() {
				c.Intent = models.Intent(intent)
			} else {
				c.Intent = models.IntentInformational
			}
			c.advance(StateIntentClassified)
		}
	}
}

func classifyIntentBatch(ctx context.Context, llm providers.LLMProvider, batch []*Candidate) (map[string]string, error) {
	prompt := "Classify the search intent of each phrase as transactional, commercial, informational, or navigational.\nPhrases:\n"
	for _, c := range batch {
		prompt += "- " + c.Phrase + "\n"
	}

	resp, err := llm.Chat(ctx, providers.ChatRequest{
		SystemPrompt: "You classify search-keyword intent.",
		UserPrompt:   prompt,
		SchemaName:   "intent_classification",
		Schema:       intentSchema,
		Temperature:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("intent classification call: %w", err)
	}

	var parsed intentLLMResponse
	if err := json.Unmarshal(resp.RawJSON, &parsed); err != nil {
		return nil, fmt.Errorf("intent classification response decode: %w", err)
	}

	out := make(map[string]string, len(parsed.Results))
	for _, r := range parsed.Results {
		out[models.NormalizePhrase(r.Phrase)] = r.Intent
	}
	return out, nil
}

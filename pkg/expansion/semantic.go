package expansion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

var semanticExpandSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"phrases": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"phrases"},
}

type semanticExpandResponse struct {
	Phrases []string `json:"phrases"`
}

// semanticExpand asks the LLM for up to limit closely related phrases to
// parentPhrase, used by both Tier2 and Tier3 LLM semantic expansion.
func semanticExpand(ctx context.Context, llm providers.LLMProvider, parentPhrase string, limit int) ([]string, error) {
	prompt := fmt.Sprintf("Generate up to %d closely related keyword phrases for: %s", limit, parentPhrase)
	resp, err := llm.Chat(ctx, providers.ChatRequest{
		SystemPrompt: "You are a keyword research assistant expanding a single phrase into close variations.",
		UserPrompt:   prompt,
		SchemaName:   "semantic_expand",
		Schema:       semanticExpandSchema,
		Temperature:  0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic expansion of %q: %w", parentPhrase, err)
	}
	var parsed semanticExpandResponse
	if err := json.Unmarshal(resp.RawJSON, &parsed); err != nil {
		return nil, fmt.Errorf("semantic expansion response decode: %w", err)
	}
	out := make([]string, 0, len(parsed.Phrases))
	for _, p := range parsed.Phrases {
		n := models.NormalizePhrase(p)
		if n != "" {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

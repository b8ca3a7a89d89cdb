package expansion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kwforge/pipeline/pkg/mathx"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

var dream100Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"phrases": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"phrase":     map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number", "description": "0..1 LLM confidence that this is a novel, relevant commercial or informational phrase"},
				},
				"required": []string{"phrase", "confidence"},
			},
		},
	},
	"required": []string{"phrases"},
}

type dream100LLMResponse struct {
	Phrases []struct {
		Phrase     string  `json:"phrase"`
		Confidence float64 `json:"confidence"`
	} `json:"phrases"`
}

// generateDream100 asks the LLM for novel commercial/informational phrases
// derived from seeds, de-dupes against the seeds themselves, ranks by
// LLM-confidence × seed-similarity, and trims to maxDream100 (
// Stage Expansion → Dream100).
func generateDream100(ctx context.Context, llm providers.LLMProvider, embedder providers.EmbeddingProvider, seeds []string, maxDream100 int) ([]*Candidate, error) {
	prompt := "Seed phrases:\n"
	for _, s := range seeds {
		prompt += "- " + s + "\n"
	}
	prompt += "\nGenerate novel, distinct commercial or informational keyword phrases related to these seeds. Do not repeat a seed verbatim."

	resp, err := llm.Chat(ctx, providers.ChatRequest{
		SystemPrompt: "You are a keyword research assistant generating a seed keyword universe.",
		UserPrompt:   prompt,
		SchemaName:   "dream100",
		Schema:       dream100Schema,
		Temperature:  0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("dream100 llm expansion: %w", err)
	}

	var parsed dream100LLMResponse
	if err := json.Unmarshal(resp.RawJSON, &parsed); err != nil {
		return nil, fmt.Errorf("dream100 llm response decode: %w", err)
	}

	seedSet := make(map[string]bool, len(seeds))
	normalizedSeeds := make([]string, len(seeds))
	for i, s := range seeds {
		n := models.NormalizePhrase(s)
		normalizedSeeds[i] = n
		seedSet[n] = true
	}

	type scored struct {
		phrase     string
		confidence float64
	}
	candidates := make([]scored, 0, len(parsed.Phrases))
	seen := make(map[string]bool)
	for _, p := range parsed.Phrases {
		n := models.NormalizePhrase(p.Phrase)
		if n == "" || seedSet[n] || seen[n] {
			continue
		}
		seen[n] = true
		candidates = append(candidates, scored{phrase: n, confidence: p.Confidence})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	similarity := make([]float64, len(candidates))
	if embedder != nil {
		phrases := make([]string, len(candidates))
		for i, c := range candidates {
			phrases[i] = c.phrase
		}
		allPhrases := append(append([]string{}, normalizedSeeds...), phrases...)
		vectors, err := embedder.GetEmbeddings(ctx, allPhrases)
		if err == nil && len(vectors) == len(allPhrases) {
			seedVecs := vectors[:len(normalizedSeeds)]
			candVecs := vectors[len(normalizedSeeds):]
			for i, cv := range candVecs {
				best := 0.0
				for _, sv := range seedVecs {
					sim := mathx.CosineSimilarity(toFloat64(sv), toFloat64(cv))
					if sim > best {
						best = sim
					}
				}
				similarity[i] = best
			}
		}
	}
	// Embedding failure or no embedder: fall back to LLM confidence alone
	// (similarity defaults to 1, a neutral multiplier).
	for i := range similarity {
		if similarity[i] == 0 {
			similarity[i] = 1
		}
	}

	rankScore := make([]float64, len(candidates))
	for i, c := range candidates {
		rankScore[i] = c.confidence * similarity[i]
	}
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return rankScore[idx[i]] > rankScore[idx[j]] })

	limit := maxDream100
	if limit <= 0 || limit > len(idx) {
		limit = len(idx)
	}

	out := make([]*Candidate, 0, limit)
	for _, i := range idx[:limit] {
		out = append(out, &Candidate{
			Phrase:    candidates[i].phrase,
			Tier:      models.TierDream100,
			State:     StateProposed,
			Relevance: rankScore[i],
		})
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

package clustering

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

var labelSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"label": map[string]any{"type": "string", "description": "A concise, human-readable label for this cluster of related keyword phrases"},
	},
	"required": []string{"label"},
}

type labelResponse struct {
	Label string `json:"label"`
}

// enhanceLabels calls the LLM once per cluster with up to 10 member
// phrases to refine the heuristic label ( step 6). A failure or
// timeout on any single cluster keeps that cluster's heuristic label and
// moves on — label enhancement never fails the run.
func enhanceLabels(ctx context.Context, llm providers.LLMProvider, clusters []models.Cluster, members []Member, memberClusterID map[string]string, log *slog.Logger) {
	phrasesByCluster := make(map[string][]string, len(clusters))
	for _, m := range members {
		if cid, ok := memberClusterID[m.Phrase]; ok {
			if len(phrasesByCluster[cid]) < 10 {
				phrasesByCluster[cid] = append(phrasesByCluster[cid], m.Phrase)
			}
		}
	}

	for i := range clusters {
		phrases := phrasesByCluster[clusters[i].ID]
		if len(phrases) == 0 {
			continue
		}
		refined, err := refineLabel(ctx, llm, phrases)
		if err != nil {
			log.Warn("cluster label enhancement failed, keeping heuristic label", "cluster_id", clusters[i].ID, "err", err)
			continue
		}
		if refined != "" {
			clusters[i].Label = refined
		}
	}
}

func refineLabel(ctx context.Context, llm providers.LLMProvider, phrases []string) (string, error) {
	prompt := "Phrases:\n"
	for _, p := range phrases {
		prompt += "- " + p + "\n"
	}

	resp, err := llm.Chat(ctx, providers.ChatRequest{
		SystemPrompt: "You label clusters of related search-keyword phrases with a short, specific topic name.",
		UserPrompt:   prompt,
		SchemaName:   "cluster_label",
		Schema:       labelSchema,
		Temperature:  0.2,
	})
	if err != nil {
		return "", err
	}

	var parsed labelResponse
	if err := json.Unmarshal(resp.RawJSON, &parsed); err != nil {
		return "", err
	}
	return parsed.Label, nil
}

package models

import "time"

// Cluster is a semantic grouping of keywords produced by the clustering
// engine. Read-only once finalized, except for the label, which may be
// overwritten by the optional LLM label-enhancement pass.
type Cluster struct {
	ID                    string             `json:"id"`
	RunID                 string             `json:"run_id"`
	Label                 string             `json:"label"`
	Size                  int                `json:"size"`
	Score                 float64            `json:"score"` // 0..1
	IntentMix             map[Intent]float64 `json:"intent_mix"`
	RepresentativePhrases []string           `json:"representative_phrases"` // <=5
	SimilarityThreshold   float64            `json:"similarity_threshold"`
	Centroid              []float32          `json:"centroid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxRepresentativePhrases bounds Cluster.RepresentativePhrases.
const MaxRepresentativePhrases = 5

// IntentMixSumsToOne reports whether the cluster's intent mix sums to
// 1.0 within the ±0.01 tolerance required by the data model invariant.
func (c *Cluster) IntentMixSumsToOne() bool {
	var sum float64
	for _, v := range c.IntentMix {
		sum += v
	}
	return sum >= 0.99 && sum <= 1.01
}

// PrimaryIntentShare returns the largest single intent fraction in the mix,
// used by cluster validation's "intent warning" rule (< 0.6 ⇒ warn).
func (c *Cluster) PrimaryIntentShare() float64 {
	var max float64
	for _, v := range c.IntentMix {
		if v > max {
			max = v
		}
	}
	return max
}

// ClusterValidationIssue describes a single warning or error surfaced by
// cluster validation rules.
type ClusterValidationIssue struct {
	ClusterID string
	Severity  string // "warning" or "error"
	Rule      string
	Detail    string
}

// ValidateCluster applies the size/coherence/intent/duplicate rules and
// returns every issue found. An empty result means the cluster is clean.
func ValidateCluster(c *Cluster, memberPhrases []string) []ClusterValidationIssue {
	var issues []ClusterValidationIssue

	if c.Size < 3 || c.Size > 100 {
		issues = append(issues, ClusterValidationIssue{
			ClusterID: c.ID, Severity: "warning", Rule: "size",
			Detail: "cluster size outside the [3,100] comfort band",
		})
	}
	if c.SimilarityThreshold < 0.5 {
		issues = append(issues, ClusterValidationIssue{
			ClusterID: c.ID, Severity: "warning", Rule: "coherence",
			Detail: "similarity threshold below 0.5",
		})
	}
	if c.PrimaryIntentShare() < 0.6 {
		issues = append(issues, ClusterValidationIssue{
			ClusterID: c.ID, Severity: "warning", Rule: "intent",
			Detail: "no single intent reaches 60% share",
		})
	}

	seen := make(map[string]bool, len(memberPhrases))
	for _, p := range memberPhrases {
		if seen[p] {
			issues = append(issues, ClusterValidationIssue{
				ClusterID: c.ID, Severity: "error", Rule: "duplicate",
				Detail: "duplicate phrase in cluster: " + p,
			})
			continue
		}
		seen[p] = true
	}

	return issues
}

package models

import "time"

// RoadmapItem is one scheduled content post in the final editorial roadmap.
type RoadmapItem struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	ClusterID string `json:"cluster_id"`
	PostID    int    `json:"post_id"`

	Stage           RoadmapStage `json:"stage"`
	PrimaryKeyword  string       `json:"primary_keyword"`
	SecondaryKeywords []string   `json:"secondary_keywords"`
	Intent          Intent       `json:"intent"`
	Volume          uint32       `json:"volume"`
	Difficulty      float64      `json:"difficulty"`
	BlendedScore    float64      `json:"blended_score"`
	QuickWin        bool         `json:"quick_win"`

	SuggestedTitle string   `json:"suggested_title"`
	DRI            string   `json:"dri"` // team member name/email
	DueDate        string   `json:"due_date"` // YYYY-MM-DD
	Notes          string   `json:"notes,omitempty"`
	SourceURLs     []string `json:"source_urls,omitempty"`

	ClusterLabel string `json:"cluster_label"`

	CreatedAt time.Time `json:"created_at"`
}

// MonthlyDistribution summarizes how many items fall into each calendar
// month bucket of the roadmap.
type MonthlyDistribution struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// DRIWorkload summarizes total assigned items and volume per team member.
type DRIWorkload struct {
	DRI        string `json:"dri"`
	ItemCount  int    `json:"item_count"`
	TotalLoad  int    `json:"total_load"`
}

// RoadmapAnalytics is the aggregate view returned alongside the roadmap
// items: monthly distribution, DRI workload, intent/stage mix, and the
// highest-scoring opportunities.
type RoadmapAnalytics struct {
	MonthlyDistribution []MonthlyDistribution `json:"monthly_distribution"`
	DRIWorkload         []DRIWorkload         `json:"dri_workload"`
	IntentDistribution  map[Intent]int        `json:"intent_distribution"`
	StageDistribution   map[RoadmapStage]int  `json:"stage_distribution"`
	TopOpportunities    []string              `json:"top_opportunities"` // primary keywords
}

// OptimizationRecommendation is a single actionable suggestion surfaced
// alongside the roadmap (pillar ratio, workload balance, quick-win emphasis).
type OptimizationRecommendation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Roadmap bundles generated items with their analytics and recommendations.
type Roadmap struct {
	RunID           string                        `json:"run_id"`
	Items           []*RoadmapItem                `json:"items"`
	Analytics       RoadmapAnalytics              `json:"analytics"`
	Recommendations []OptimizationRecommendation  `json:"recommendations"`
}

package roadmap

import (
	"sort"

	"github.com/kwforge/pipeline/pkg/models"
)

// buildAnalytics aggregates the generated items into the monthly
// distribution, DRI workload, intent/stage mix, and top opportunities
// ( Outputs).
func buildAnalytics(items []*models.RoadmapItem) models.RoadmapAnalytics {
	monthCounts := make(map[string]int)
	driItemCount := make(map[string]int)
	driVolume := make(map[string]int)
	intentDist := make(map[models.Intent]int)
	stageDist := make(map[models.RoadmapStage]int)

	for _, it := range items {
		if len(it.DueDate) >= 7 {
			monthCounts[it.DueDate[:7]]++
		}
		if it.DRI != "" {
			driItemCount[it.DRI]++
			driVolume[it.DRI] += int(it.Volume)
		}
		intentDist[it.Intent]++
		stageDist[it.Stage]++
	}

	var monthly []models.MonthlyDistribution
	for month, count := range monthCounts {
		monthly = append(monthly, models.MonthlyDistribution{Month: month, Count: count})
	}
	sort.Slice(monthly, func(i, j int) bool { return monthly[i].Month < monthly[j].Month })

	var workload []models.DRIWorkload
	for dri, count := range driItemCount {
		workload = append(workload, models.DRIWorkload{DRI: dri, ItemCount: count, TotalLoad: driVolume[dri]})
	}
	sort.Slice(workload, func(i, j int) bool { return workload[i].DRI < workload[j].DRI })

	topOpportunities := topOpportunities(items)

	return models.RoadmapAnalytics{
		MonthlyDistribution: monthly,
		DRIWorkload:         workload,
		IntentDistribution:  intentDist,
		StageDistribution:   stageDist,
		TopOpportunities:    topOpportunities,
	}
}

func topOpportunities(items []*models.RoadmapItem) []string {
	sorted := append([]*models.RoadmapItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BlendedScore != sorted[j].BlendedScore {
			return sorted[i].BlendedScore > sorted[j].BlendedScore
		}
		return sorted[i].PrimaryKeyword < sorted[j].PrimaryKeyword
	})
	n := topOpportunitiesCount
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].PrimaryKeyword
	}
	return out
}

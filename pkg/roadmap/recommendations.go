package roadmap

import (
	"fmt"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/models"
)

// workloadImbalanceThreshold triggers a rebalance recommendation once the
// busiest member's load fraction exceeds the least busy by this much.
const workloadImbalanceThreshold = 0.4

// quickWinEmphasisThreshold is the quick-win fraction above which turning
// on quick_win_priority is worth recommending.
const quickWinEmphasisThreshold = 0.3

// pillarRatioDriftThreshold is how far the realized pillar fraction may
// drift from the requested pillar_ratio before it's worth flagging.
const pillarRatioDriftThreshold = 0.05

// buildRecommendations produces the optimization recommendations bundled
// with the roadmap (pillar ratio, workload balance, quick-win
// emphasis).
func buildRecommendations(items []*models.RoadmapItem, p Params, assigner *teamAssigner) []models.OptimizationRecommendation {
	var out []models.OptimizationRecommendation
	if len(items) == 0 {
		return out
	}

	var pillarCount int
	var quickWinCount int
	for _, it := range items {
		if it.Stage == models.RoadmapStagePillar {
			pillarCount++
		}
		if it.QuickWin {
			quickWinCount++
		}
	}

	actualRatio := float64(pillarCount) / float64(len(items))
	targetRatio := clampRatio(p.PillarRatio)
	if diff := actualRatio - targetRatio; diff > pillarRatioDriftThreshold || diff < -pillarRatioDriftThreshold {
		out = append(out, models.OptimizationRecommendation{
			Kind: "pillar_ratio",
			Message: fmt.Sprintf("realized pillar ratio %.2f drifted from the requested %.2f; cluster sizes may be too uneven for a clean split", actualRatio, targetRatio),
		})
	}

	if rec := workloadRecommendation(p.TeamMembers, assigner); rec != nil {
		out = append(out, *rec)
	}

	quickWinFraction := float64(quickWinCount) / float64(len(items))
	if !p.QuickWinPriority && quickWinFraction >= quickWinEmphasisThreshold {
		out = append(out, models.OptimizationRecommendation{
			Kind:    "quick_win_emphasis",
			Message: fmt.Sprintf("%.0f%% of scheduled items are quick wins; enabling quick_win_priority would surface them earlier in the calendar", quickWinFraction*100),
		})
	}

	return out
}

func workloadRecommendation(members []config.TeamMember, assigner *teamAssigner) *models.OptimizationRecommendation {
	if len(members) < 2 {
		return nil
	}
	load := assigner.workload()
	var maxFrac, minFrac float64
	first := true
	for _, m := range members {
		if m.Capacity <= 0 {
			continue
		}
		frac := float64(load[m.Name]) / float64(m.Capacity)
		if first {
			maxFrac, minFrac = frac, frac
			first = false
			continue
		}
		if frac > maxFrac {
			maxFrac = frac
		}
		if frac < minFrac {
			minFrac = frac
		}
	}
	if !first && maxFrac-minFrac > workloadImbalanceThreshold {
		return &models.OptimizationRecommendation{
			Kind:    "workload_balance",
			Message: "team workload is unevenly distributed; consider adjusting capacities or specialties to spread assignments more evenly",
		}
	}
	return nil
}

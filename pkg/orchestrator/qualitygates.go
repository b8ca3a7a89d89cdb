package orchestrator

import (
	"fmt"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/models"
)

// minDream100ForGate and minClustersForGate are the pass/warn thresholds for
// the Expansion and Clustering quality gates (gates run after
// Expansion, Clustering, and Scoring; by default they warn rather than
// abort, unless settings.QualityGates.Strict is set).
const (
	minDream100ForGate = 50
	minClustersForGate = 5
)

// runQualityGate checks the gate defined for stage against the run state
// just produced by it, returning a non-empty message if the gate did not
// pass. Strict mode is honored by the caller promoting the returned message
// into a run-terminal error instead of a warning; runQualityGate itself
// never mutates run or st.
func runQualityGate(stage models.Stage, run *models.Run, st *runState, settings config.Settings) string {
	if !settings.QualityGates.Enabled {
		return ""
	}

	switch stage {
	case models.StageExpansion:
		st.mu.Lock()
		dream100 := len(st.dream)
		st.mu.Unlock()
		if dream100 < minDream100ForGate {
			return fmt.Sprintf("expansion produced only %d dream100 keywords, below the %d quality floor", dream100, minDream100ForGate)
		}

	case models.StageClustering:
		st.mu.Lock()
		n := len(st.clusters)
		st.mu.Unlock()
		if n < minClustersForGate {
			return fmt.Sprintf("clustering produced only %d clusters, below the %d quality floor", n, minClustersForGate)
		}

	case models.StageScoring:
		st.mu.Lock()
		var total, quickWins int
		for _, k := range st.keywords {
			total++
			if k.QuickWin {
				quickWins++
			}
		}
		st.mu.Unlock()
		if total > 0 && quickWins == 0 {
			return "scoring found zero quick-win keywords across the full universe"
		}
	}

	return ""
}

// strictGateFails reports whether a non-empty quality-gate message should
// abort the run rather than just warn, per settings.QualityGates.Strict.
func strictGateFails(settings config.Settings) bool {
	return settings.QualityGates.Enabled && settings.QualityGates.Strict
}

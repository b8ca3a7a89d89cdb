package roadmap

import (
	"strings"

	"github.com/kwforge/pipeline/pkg/config"
)

// teamAssigner tracks running load per team member across a Generate call
// ( Team assignment: "update running load").
type teamAssigner struct {
	members []config.TeamMember
	load    map[string]int // by member Name
}

func newTeamAssigner(members []config.TeamMember) *teamAssigner {
	load := make(map[string]int, len(members))
	for _, m := range members {
		load[m.Name] = 0
	}
	return &teamAssigner{members: members, load: load}
}

// assign picks the member maximizing 0.7*load_score + 0.3*specialty_score
// among those available on dueDate, and records the assignment against
// their running load. Returns ("", false) if no member is available.
func (a *teamAssigner) assign(clusterLabel, dueDate string) (string, bool) {
	var best *config.TeamMember
	var bestScore float64 = -1

	for i := range a.members {
		m := &a.members[i]
		if isUnavailable(m, dueDate) {
			continue
		}
		score := 0.7*loadScore(m.Capacity, a.load[m.Name]) + 0.3*specialtyScore(m.Specialties, clusterLabel)
		if score > bestScore || (score == bestScore && best != nil && m.Name < best.Name) {
			bestScore = score
			best = m
		}
	}
	if best == nil {
		return "", false
	}
	a.load[best.Name]++
	return best.Name, true
}

func isUnavailable(m *config.TeamMember, dueDate string) bool {
	for _, d := range m.Unavailable {
		if d == dueDate {
			return true
		}
	}
	return false
}

// loadScore is (capacity - current_load)/capacity, clamped to [0,∞) per
// ; an exhausted member scores 0 rather than going negative.
func loadScore(capacity, current int) float64 {
	if capacity <= 0 {
		return 0
	}
	s := float64(capacity-current) / float64(capacity)
	if s < 0 {
		return 0
	}
	return s
}

// specialtyScore is 1 if any specialty term occurs in the cluster label,
// else 0.3.
func specialtyScore(specialties []string, clusterLabel string) float64 {
	lower := strings.ToLower(clusterLabel)
	for _, s := range specialties {
		if s == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(s)) {
			return 1
		}
	}
	return 0.3
}

// workload reports each member's final item count, used by the
// workload-balance recommendation.
func (a *teamAssigner) workload() map[string]int {
	out := make(map[string]int, len(a.load))
	for name, n := range a.load {
		out[name] = n
	}
	return out
}

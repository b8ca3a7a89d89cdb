// Package roadmap implements the Roadmap Generator: pillar vs.
// supporting stage assignment, monthly/weekly time-slicing, DRI team
// assignment by load and specialty, and the analytics/recommendations
// bundled alongside the generated items. Like pkg/scoring, Generate is a
// pure function of its inputs (plus the run's start date).
package roadmap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/models"
)

// Input is one scored, clustered keyword eligible for the roadmap.
type Input struct {
	Phrase       string
	ClusterID    string
	ClusterLabel string
	Intent       models.Intent
	Volume       uint32
	Difficulty   float64
	BlendedScore float64
	QuickWin     bool
	TopSERPURLs  []string
}

// Params configures one Generate call ( Inputs).
type Params struct {
	RunID            string
	PostsPerMonth    int
	DurationMonths   int
	PillarRatio      float64
	QuickWinPriority bool
	TeamMembers      []config.TeamMember
	StartDate        time.Time
}

// weeklySlots is the fixed number of weekly publishing slots per month
// ("within a month, spread across four weekly slots").
const weeklySlots = 4

// topCoClusterPeers bounds how many secondary_keywords accompany each item.
const topCoClusterPeers = 5

// topOpportunitiesCount bounds the analytics top_opportunities list.
const topOpportunitiesCount = 10

// Generate builds the full roadmap: stage assignment, ordering,
// time-slicing, team assignment, analytics, and recommendations. Warnings
// are returned separately rather than attached to the roadmap itself,
// mirroring how the Universe Expansion Engine keeps capacity warnings out
// of its core result type.
func Generate(items []Input, p Params) (*models.Roadmap, []string) {
	var warnings []string

	champions := clusterChampions(items)
	pillarCount := int(float64(len(items)) * clampRatio(p.PillarRatio))
	pillarSet := selectPillars(champions, pillarCount)

	ordered := append([]Input(nil), items...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if p.QuickWinPriority && ordered[i].QuickWin != ordered[j].QuickWin {
			return ordered[i].QuickWin
		}
		if ordered[i].BlendedScore != ordered[j].BlendedScore {
			return ordered[i].BlendedScore > ordered[j].BlendedScore
		}
		return ordered[i].Phrase < ordered[j].Phrase
	})

	capacity := p.PostsPerMonth * p.DurationMonths
	if capacity > 0 && len(ordered) > capacity {
		warnings = append(warnings, fmt.Sprintf("roadmap capacity %d below scored universe %d; %d lowest-priority items were dropped", capacity, len(ordered), len(ordered)-capacity))
		ordered = ordered[:capacity]
	}

	coClusterIndex := buildCoClusterIndex(items)
	assigner := newTeamAssigner(p.TeamMembers)

	items2 := make([]*models.RoadmapItem, 0, len(ordered))
	now := time.Now()
	for i, in := range ordered {
		stage := models.RoadmapStageSupporting
		if pillarSet[in.Phrase] {
			stage = models.RoadmapStagePillar
		}

		dueDate := dueDateFor(p.StartDate, i, p.PostsPerMonth)
		dri, ok := assigner.assign(in.ClusterLabel, dueDate)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no team member available for %q on %s; left unassigned", in.Phrase, dueDate))
		}

		items2 = append(items2, &models.RoadmapItem{
			RunID:             p.RunID,
			ClusterID:         in.ClusterID,
			PostID:            i + 1,
			Stage:             stage,
			PrimaryKeyword:    in.Phrase,
			SecondaryKeywords: coClusterIndex[in.ClusterID][in.Phrase],
			Intent:            in.Intent,
			Volume:            in.Volume,
			Difficulty:        in.Difficulty,
			BlendedScore:      in.BlendedScore,
			QuickWin:          in.QuickWin,
			SuggestedTitle:    suggestedTitle(in.Phrase, in.Intent, stage),
			DRI:               dri,
			DueDate:           dueDate,
			SourceURLs:        in.TopSERPURLs,
			ClusterLabel:      in.ClusterLabel,
			CreatedAt:         now,
		})
	}

	analytics := buildAnalytics(items2)
	recommendations := buildRecommendations(items2, p, assigner)

	return &models.Roadmap{
		RunID:           p.RunID,
		Items:           items2,
		Analytics:       analytics,
		Recommendations: recommendations,
	}, warnings
}

func clampRatio(r float64) float64 {
	if r < 0.1 {
		return 0.1
	}
	if r > 0.9 {
		return 0.9
	}
	return r
}

// clusterChampions returns, per cluster, the single highest blended_score
// item — the candidate eligible to become that cluster's pillar.
func clusterChampions(items []Input) []Input {
	best := make(map[string]Input)
	for _, in := range items {
		cur, ok := best[in.ClusterID]
		if !ok || in.BlendedScore > cur.BlendedScore || (in.BlendedScore == cur.BlendedScore && in.Phrase < cur.Phrase) {
			best[in.ClusterID] = in
		}
	}
	out := make([]Input, 0, len(best))
	for _, in := range best {
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlendedScore != out[j].BlendedScore {
			return out[i].BlendedScore > out[j].BlendedScore
		}
		return out[i].Phrase < out[j].Phrase
	})
	return out
}

// selectPillars picks one champion per cluster, highest score first, up to
// n ("one per cluster up to floor(total_items · pillar_ratio)").
func selectPillars(champions []Input, n int) map[string]bool {
	if n > len(champions) {
		n = len(champions)
	}
	out := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		out[champions[i].Phrase] = true
	}
	return out
}

// buildCoClusterIndex maps cluster -> phrase -> that phrase's top
// co-cluster peers by score, excluding itself, used for secondary_keywords.
func buildCoClusterIndex(items []Input) map[string]map[string][]string {
	byCluster := make(map[string][]Input)
	for _, in := range items {
		byCluster[in.ClusterID] = append(byCluster[in.ClusterID], in)
	}
	index := make(map[string]map[string][]string, len(byCluster))
	for clusterID, members := range byCluster {
		sorted := append([]Input(nil), members...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Volume != sorted[j].Volume {
				return sorted[i].Volume > sorted[j].Volume
			}
			return sorted[i].Phrase < sorted[j].Phrase
		})
		perPhrase := make(map[string][]string, len(sorted))
		for _, in := range sorted {
			var peers []string
			for _, other := range sorted {
				if other.Phrase == in.Phrase {
					continue
				}
				peers = append(peers, other.Phrase)
				if len(peers) == topCoClusterPeers {
					break
				}
			}
			perPhrase[in.Phrase] = peers
		}
		index[clusterID] = perPhrase
	}
	return index
}

// dueDateFor maps a 0-based position in the fully ordered item list to a
// YYYY-MM-DD date: one month bucket per postsPerMonth items, weekly slots
// spread evenly across the month ( ordering/time-slicing rule).
func dueDateFor(start time.Time, position, postsPerMonth int) string {
	if postsPerMonth <= 0 {
		postsPerMonth = 1
	}
	month := position / postsPerMonth
	withinMonth := position % postsPerMonth
	slot := withinMonth % weeklySlots

	monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location()).AddDate(0, month, 0)
	due := monthStart.AddDate(0, 0, slot*7)
	return due.Format("2006-01-02")
}

// suggestedTitle is deterministic given (primary_keyword, intent,
// content_type): content_type is derived from stage ( Open
// Questions resolves "LLM-generated vs. templated" in favor of a
// templated title, since the generator must stay a pure function).
func suggestedTitle(phrase string, intent models.Intent, stage models.RoadmapStage) string {
	title := titleCase(phrase)
	if stage == models.RoadmapStagePillar {
		return fmt.Sprintf("The Complete Guide to %s", title)
	}
	switch intent {
	case models.IntentTransactional:
		return fmt.Sprintf("Best %s: How to Choose", title)
	case models.IntentCommercial:
		return fmt.Sprintf("%s: Comparison and Buying Guide", title)
	case models.IntentNavigational:
		return fmt.Sprintf("%s: Everything You Need to Know", title)
	default:
		return fmt.Sprintf("What Is %s? A Practical Guide", title)
	}
}

func titleCase(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

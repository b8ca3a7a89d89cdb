package clustering

import (
	"sort"
	"strings"
	"time"

	"github.com/kwforge/pipeline/pkg/models"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "for": true, "to": true,
	"and": true, "or": true, "in": true, "on": true, "is": true, "with": true,
	"how": true, "what": true, "why": true, "best": true, "top": true,
}

// finalize applies the last pass over raw clusters: clusters under
// MinClusterSize are dropped and their members become outliers (absent
// from the returned member-to-cluster map); survivors get a heuristic
// label, intent mix, and representative phrases.
func finalize(members []Member, nodes []*node, p Params) ([]models.Cluster, map[string]string) {
	now := time.Now()
	clusters := make([]models.Cluster, 0, len(nodes))
	memberClusterID := make(map[string]string, len(members))

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })

	for _, n := range nodes {
		if len(n.members) < p.MinClusterSize {
			continue
		}

		phrases := make([]string, len(n.members))
		intentCounts := make(map[models.Intent]int, 5)
		for i, idx := range n.members {
			phrases[i] = members[idx].Phrase
			intentCounts[members[idx].Intent]++
		}

		intentMix := make(map[models.Intent]float64, len(intentCounts))
		for intent, count := range intentCounts {
			intentMix[intent] = float64(count) / float64(len(n.members))
		}

		centroid := make([]float32, len(n.centroidSum))
		for i, sum := range n.centroidSum {
			centroid[i] = float32(sum / float64(len(n.members)))
		}

		label := heuristicLabel(phrases, allPhrasesForFrequency(members))
		reps := representativePhrases(members, n.members)

		cluster := models.Cluster{
			ID:                    n.id,
			Label:                 label,
			Size:                  len(n.members),
			IntentMix:             intentMix,
			RepresentativePhrases: reps,
			SimilarityThreshold:   p.SimilarityThreshold,
			Centroid:              centroid,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		clusters = append(clusters, cluster)

		for _, idx := range n.members {
			memberClusterID[members[idx].Phrase] = n.id
		}
	}

	return clusters, memberClusterID
}

// heuristicLabel picks the most frequent non-stopword term (length > 2)
// across the cluster's own phrases, tie-broken by frequency across the
// full input batch (allPhrases).
func heuristicLabel(clusterPhrases []string, allPhrases map[string]int) string {
	localFreq := make(map[string]int)
	for _, phrase := range clusterPhrases {
		for _, term := range strings.Fields(strings.ToLower(phrase)) {
			if len(term) <= 2 || stopwords[term] {
				continue
			}
			localFreq[term]++
		}
	}
	if len(localFreq) == 0 {
		if len(clusterPhrases) > 0 {
			return clusterPhrases[0]
		}
		return ""
	}

	terms := make([]string, 0, len(localFreq))
	for term := range localFreq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		ti, tj := terms[i], terms[j]
		if localFreq[ti] != localFreq[tj] {
			return localFreq[ti] > localFreq[tj]
		}
		if allPhrases[ti] != allPhrases[tj] {
			return allPhrases[ti] > allPhrases[tj]
		}
		return ti < tj
	})
	return terms[0]
}

func allPhrasesForFrequency(members []Member) map[string]int {
	freq := make(map[string]int)
	for _, m := range members {
		for _, term := range strings.Fields(strings.ToLower(m.Phrase)) {
			if len(term) <= 2 || stopwords[term] {
				continue
			}
			freq[term]++
		}
	}
	return freq
}

// representativePhrases returns the top MaxRepresentativePhrases member
// phrases: by blended score if present on all members, else by volume.
func representativePhrases(members []Member, memberIdx []int) []string {
	type ranked struct {
		phrase string
		score  float64
	}
	haveScores := true
	for _, idx := range memberIdx {
		if members[idx].Score == nil {
			haveScores = false
			break
		}
	}

	ranks := make([]ranked, len(memberIdx))
	for i, idx := range memberIdx {
		m := members[idx]
		if haveScores {
			ranks[i] = ranked{phrase: m.Phrase, score: *m.Score}
		} else {
			ranks[i] = ranked{phrase: m.Phrase, score: float64(m.Volume)}
		}
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].score != ranks[j].score {
			return ranks[i].score > ranks[j].score
		}
		return ranks[i].phrase < ranks[j].phrase
	})

	limit := models.MaxRepresentativePhrases
	if len(ranks) < limit {
		limit = len(ranks)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = ranks[i].phrase
	}
	return out
}

package roadmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/models"
)

func sampleItems() []Input {
	return []Input{
		{Phrase: "seo tools", ClusterID: "c1", ClusterLabel: "seo tooling", Intent: models.IntentCommercial, Volume: 5000, Difficulty: 40, BlendedScore: 0.9, QuickWin: true},
		{Phrase: "best seo tools", ClusterID: "c1", ClusterLabel: "seo tooling", Intent: models.IntentCommercial, Volume: 3000, Difficulty: 35, BlendedScore: 0.8, QuickWin: true},
		{Phrase: "free seo tools", ClusterID: "c1", ClusterLabel: "seo tooling", Intent: models.IntentCommercial, Volume: 2000, Difficulty: 30, BlendedScore: 0.6, QuickWin: false},
		{Phrase: "what is seo", ClusterID: "c2", ClusterLabel: "seo basics", Intent: models.IntentInformational, Volume: 8000, Difficulty: 20, BlendedScore: 0.75, QuickWin: false},
		{Phrase: "how does seo work", ClusterID: "c2", ClusterLabel: "seo basics", Intent: models.IntentInformational, Volume: 1000, Difficulty: 25, BlendedScore: 0.5, QuickWin: false},
	}
}

func sampleTeam() []config.TeamMember {
	return []config.TeamMember{
		{Name: "Ada", Role: config.RoleWriter, Capacity: 3, Specialties: []string{"seo tooling"}},
		{Name: "Grace", Role: config.RoleWriter, Capacity: 3, Specialties: []string{"basics"}},
	}
}

func TestGenerateAssignsOnePillarPerCluster(t *testing.T) {
	items := sampleItems()
	p := Params{RunID: "run1", PostsPerMonth: 10, DurationMonths: 1, PillarRatio: 0.4, TeamMembers: sampleTeam(), StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	rm, warnings := Generate(items, p)
	assert.Empty(t, warnings)
	require.Len(t, rm.Items, len(items))

	pillarsByCluster := map[string]int{}
	for _, it := range rm.Items {
		if it.Stage == models.RoadmapStagePillar {
			pillarsByCluster[it.ClusterID]++
		}
	}
	for cluster, n := range pillarsByCluster {
		assert.LessOrEqualf(t, n, 1, "cluster %s got more than one pillar", cluster)
	}

	var seoToolsStage models.RoadmapStage
	for _, it := range rm.Items {
		if it.PrimaryKeyword == "seo tools" {
			seoToolsStage = it.Stage
		}
	}
	assert.Equal(t, models.RoadmapStagePillar, seoToolsStage, "the highest-scoring item in its cluster should be the pillar")
}

func TestGenerateOrdersByQuickWinThenScoreWhenPrioritized(t *testing.T) {
	items := sampleItems()
	p := Params{RunID: "run1", PostsPerMonth: 10, DurationMonths: 1, PillarRatio: 0.3, QuickWinPriority: true, TeamMembers: sampleTeam(), StartDate: time.Now()}

	rm, _ := Generate(items, p)
	require.Len(t, rm.Items, len(items))
	assert.True(t, rm.Items[0].QuickWin)
	assert.True(t, rm.Items[1].QuickWin)
}

func TestGenerateTruncatesAndWarnsWhenOverCapacity(t *testing.T) {
	items := sampleItems()
	p := Params{RunID: "run1", PostsPerMonth: 2, DurationMonths: 1, PillarRatio: 0.3, TeamMembers: sampleTeam(), StartDate: time.Now()}

	rm, warnings := Generate(items, p)
	assert.Len(t, rm.Items, 2)
	assert.NotEmpty(t, warnings)
}

func TestGenerateSpreadsDueDatesAcrossWeeklySlots(t *testing.T) {
	items := sampleItems()
	p := Params{RunID: "run1", PostsPerMonth: 4, DurationMonths: 2, PillarRatio: 0.3, TeamMembers: sampleTeam(), StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	rm, _ := Generate(items, p)
	dueDates := map[string]bool{}
	for _, it := range rm.Items {
		dueDates[it.DueDate] = true
		assert.True(t, it.DueDate >= "2026-03-01" && it.DueDate < "2026-05-01")
	}
	assert.Greater(t, len(dueDates), 1)
}

func TestGenerateAssignsDRIBySpecialtyAndLoad(t *testing.T) {
	items := sampleItems()
	p := Params{RunID: "run1", PostsPerMonth: 10, DurationMonths: 1, PillarRatio: 0.3, TeamMembers: sampleTeam(), StartDate: time.Now()}

	rm, warnings := Generate(items, p)
	assert.Empty(t, warnings)

	byPhrase := map[string]string{}
	for _, it := range rm.Items {
		byPhrase[it.PrimaryKeyword] = it.DRI
	}
	assert.Equal(t, "Ada", byPhrase["seo tools"])
	assert.Equal(t, "Grace", byPhrase["what is seo"])
}

func TestGenerateSkipsUnavailableTeamMember(t *testing.T) {
	items := []Input{{Phrase: "seo tools", ClusterID: "c1", ClusterLabel: "seo", Intent: models.IntentCommercial, BlendedScore: 0.9}}
	team := []config.TeamMember{{Name: "Ada", Capacity: 3, Unavailable: []string{"2026-01-01"}}}
	p := Params{RunID: "run1", PostsPerMonth: 10, DurationMonths: 1, PillarRatio: 0.3, TeamMembers: team, StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	rm, warnings := Generate(items, p)
	require.Len(t, rm.Items, 1)
	assert.Equal(t, "", rm.Items[0].DRI)
	assert.NotEmpty(t, warnings)
}

func TestSuggestedTitleIsDeterministic(t *testing.T) {
	a := suggestedTitle("best seo tools", models.IntentCommercial, models.RoadmapStageSupporting)
	b := suggestedTitle("best seo tools", models.IntentCommercial, models.RoadmapStageSupporting)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "Best Seo Tools")
}

func TestGenerateProducesAnalyticsAndRecommendations(t *testing.T) {
	items := sampleItems()
	p := Params{RunID: "run1", PostsPerMonth: 10, DurationMonths: 1, PillarRatio: 0.3, TeamMembers: sampleTeam(), StartDate: time.Now()}

	rm, _ := Generate(items, p)
	assert.NotEmpty(t, rm.Analytics.MonthlyDistribution)
	assert.NotEmpty(t, rm.Analytics.DRIWorkload)
	assert.Len(t, rm.Analytics.TopOpportunities, len(items))
	assert.Equal(t, len(items), rm.Analytics.IntentDistribution[models.IntentCommercial]+rm.Analytics.IntentDistribution[models.IntentInformational])
}

// Package models defines the domain types shared across every pipeline
// stage: Keyword, Cluster, Run, Job, and RoadmapItem.
package models

// Tier identifies which expansion tier a keyword belongs to. Tiers carry
// decreasing per-item traffic potential and increasing long-tail specificity.
type Tier string

const (
	TierDream100 Tier = "dream100"
	TierTier2    Tier = "tier2"
	TierTier3    Tier = "tier3"
)

// IsValid reports whether the tier is one of the three recognized tiers.
func (t Tier) IsValid() bool {
	switch t {
	case TierDream100, TierTier2, TierTier3:
		return true
	default:
		return false
	}
}

// Rank returns the tier's ancestry rank: higher means closer to the seeds.
// Dream100 > Tier2 > Tier3. Used to enforce that a parent_phrase always
// resolves to a strictly higher tier than its child.
func (t Tier) Rank() int {
	switch t {
	case TierDream100:
		return 3
	case TierTier2:
		return 2
	case TierTier3:
		return 1
	default:
		return 0
	}
}

// Intent classifies the searcher's likely goal behind a keyword.
type Intent string

const (
	IntentTransactional Intent = "transactional"
	IntentCommercial    Intent = "commercial"
	IntentInformational Intent = "informational"
	IntentNavigational  Intent = "navigational"
	IntentUnknown       Intent = "unknown"
)

// IsValid reports whether the intent is one of the five recognized values.
func (i Intent) IsValid() bool {
	switch i {
	case IntentTransactional, IntentCommercial, IntentInformational, IntentNavigational, IntentUnknown:
		return true
	default:
		return false
	}
}

// intentWeights is the fixed table from the scoring component normalization
// rules: each intent maps to a fixed 0..1 component score.
var intentWeights = map[Intent]float64{
	IntentTransactional: 1.0,
	IntentCommercial:    0.8,
	IntentInformational: 0.6,
	IntentNavigational:  0.4,
	IntentUnknown:       0.6,
}

// ComponentScore returns the fixed intent component score used by the
// scoring engine. Unknown/invalid values default to the Unknown score.
func (i Intent) ComponentScore() float64 {
	if v, ok := intentWeights[i]; ok {
		return v
	}
	return intentWeights[IntentUnknown]
}

// RunStatus is the lifecycle status of a Run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// IsTerminal reports whether the status is a sink state: no further
// transitions are permitted once a Run reaches one of these.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStatus is the lifecycle status of a single orchestrator Job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusRetrying  JobStatus = "retrying"
)

// IsTerminal reports whether the job status is a sink state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// Stage is one of the fixed, ordered pipeline stages.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageExpansion       Stage = "expansion"
	StageUniverse        Stage = "universe"
	StageClustering      Stage = "clustering"
	StageScoring         Stage = "scoring"
	StageRoadmap         Stage = "roadmap"
	StageExport          Stage = "export"
	StageCleanup         Stage = "cleanup"
)

// Stages is the fixed ordered sequence of pipeline stages.
var Stages = []Stage{
	StageInitialization,
	StageExpansion,
	StageUniverse,
	StageClustering,
	StageScoring,
	StageRoadmap,
	StageExport,
	StageCleanup,
}

// stageWeights holds the progress-aggregation weight (in percent) for each
// stage. Sums to 100.
var stageWeights = map[Stage]float64{
	StageInitialization: 5,
	StageExpansion:       40,
	StageUniverse:        25,
	StageClustering:      15,
	StageScoring:         8,
	StageRoadmap:         5,
	StageExport:          2,
	StageCleanup:         0,
}

// Weight returns the stage's contribution, in percentage points, to overall
// Run progress.
func (s Stage) Weight() float64 {
	return stageWeights[s]
}

// Index returns the stage's position in the fixed ordering, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// RoadmapStage is the editorial role of a roadmap item within its cluster.
type RoadmapStage string

const (
	RoadmapStagePillar     RoadmapStage = "pillar"
	RoadmapStageSupporting RoadmapStage = "supporting"
)

// ProviderSource identifies which upstream produced a MetricsRecord —
// surfaced on every downstream artifact per the "no silent mock fallback"
// design note.
type ProviderSource string

const (
	ProviderSourceMock ProviderSource = "mock"
	// ProviderSourceSynthesized tags metrics the Universe Expansion Engine
	// estimated from tier and phrase length after a bulk enrichment batch
	// failed every retry — distinct from ProviderSourceMock, which marks an
	// entire provider as unavailable rather than one failed batch.
	ProviderSourceSynthesized ProviderSource = "synthesized"
)

// WarningKind classifies a structured warning emitted to the Progress Bus
// and a Run's error log. Mirrors the error taxonomy in errors.go but scoped
// to non-fatal, recovered conditions.
type WarningKind string

const (
	WarningProviderTransient WarningKind = "provider_transient"
	WarningProviderFallback  WarningKind = "provider_fallback"
	WarningQualityGate       WarningKind = "quality_gate"
	WarningCapExceeded       WarningKind = "cap_exceeded"
	WarningBatchSkipped      WarningKind = "batch_skipped"
)

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStageIncrementsCounterAndHistogram(t *testing.T) {
	RecordStage("expansion", "completed", 250*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(stageExecutions.WithLabelValues("expansion", "completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(stageDuration, "kwforge_stage_duration_seconds"))
}

func TestRecordJobRetryIncrementsByStage(t *testing.T) {
	before := testutil.ToFloat64(jobRetries.WithLabelValues("clustering"))
	RecordJobRetry("clustering")
	assert.Equal(t, before+1, testutil.ToFloat64(jobRetries.WithLabelValues("clustering")))
}

func TestRecordQualityGateWarningIncrementsByStage(t *testing.T) {
	before := testutil.ToFloat64(qualityGateWarnings.WithLabelValues("scoring"))
	RecordQualityGateWarning("scoring")
	assert.Equal(t, before+1, testutil.ToFloat64(qualityGateWarnings.WithLabelValues("scoring")))
}

func TestRecordRunCompletionTracksStatusAndCost(t *testing.T) {
	before := testutil.ToFloat64(runCompletions.WithLabelValues("completed"))
	RecordRunCompletion("completed", 4.25)
	assert.Equal(t, before+1, testutil.ToFloat64(runCompletions.WithLabelValues("completed")))
}

func TestRecordBudgetExceededIncrementsByStage(t *testing.T) {
	before := testutil.ToFloat64(runBudgetExceeded.WithLabelValues("roadmap"))
	RecordBudgetExceeded("roadmap")
	assert.Equal(t, before+1, testutil.ToFloat64(runBudgetExceeded.WithLabelValues("roadmap")))
}

func TestRecordProviderCallTracksOutcomeAndCost(t *testing.T) {
	beforeOK := testutil.ToFloat64(providerCalls.WithLabelValues("llm", "success"))
	beforeCost := testutil.ToFloat64(providerCostUSD.WithLabelValues("llm"))

	RecordProviderCall("llm", nil, 80*time.Millisecond, 0.02)

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(providerCalls.WithLabelValues("llm", "success")))
	assert.Equal(t, beforeCost+0.02, testutil.ToFloat64(providerCostUSD.WithLabelValues("llm")))

	beforeErr := testutil.ToFloat64(providerCalls.WithLabelValues("llm", "error"))
	RecordProviderCall("llm", errors.New("boom"), 10*time.Millisecond, 0)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(providerCalls.WithLabelValues("llm", "error")))
}

func TestRecordCacheHitAndMissTrackOutcomes(t *testing.T) {
	beforeHit := testutil.ToFloat64(cacheOperations.WithLabelValues("hit"))
	beforeDurable := testutil.ToFloat64(cacheOperations.WithLabelValues("durable_hit"))
	beforeMiss := testutil.ToFloat64(cacheOperations.WithLabelValues("miss"))

	RecordCacheHit(false)
	RecordCacheHit(true)
	RecordCacheMiss()

	assert.Equal(t, beforeHit+1, testutil.ToFloat64(cacheOperations.WithLabelValues("hit")))
	assert.Equal(t, beforeDurable+1, testutil.ToFloat64(cacheOperations.WithLabelValues("durable_hit")))
	assert.Equal(t, beforeMiss+1, testutil.ToFloat64(cacheOperations.WithLabelValues("miss")))
}

func TestRecordCacheSnapshotSetsHitRatioGauge(t *testing.T) {
	RecordCacheSnapshot(3, 1)
	assert.InDelta(t, 0.75, testutil.ToFloat64(cacheHitRatio), 0.0001)

	RecordCacheSnapshot(0, 0)
	assert.InDelta(t, 0.75, testutil.ToFloat64(cacheHitRatio), 0.0001)
}

func TestRecordBatcherStateSetsGauges(t *testing.T) {
	RecordBatcherState("provider.metrics", 2, false)
	assert.Equal(t, float64(2), testutil.ToFloat64(batchQueueDepth.WithLabelValues("provider.metrics")))
	assert.Equal(t, float64(0), testutil.ToFloat64(circuitState.WithLabelValues("provider.metrics")))

	RecordBatcherState("provider.metrics", 0, true)
	assert.Equal(t, float64(0), testutil.ToFloat64(batchQueueDepth.WithLabelValues("provider.metrics")))
	assert.Equal(t, float64(1), testutil.ToFloat64(circuitState.WithLabelValues("provider.metrics")))
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	h := Handler()
	assert.NotNil(t, h)
}

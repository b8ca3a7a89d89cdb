// Package metrics exposes the pipeline's Prometheus instrumentation:
// stage durations, provider call outcomes, cache effectiveness, and
// run/job lifecycle counts. Collectors are package-level so every
// orchestrator, provider, and cache call site can record against them
// without threading a recorder handle through every constructor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kwforge"

var (
	// Registry holds the pipeline's own collectors plus the standard Go
	// and process collectors, kept separate from the global default
	// registry so tests can construct independent registries.
	Registry = prometheus.NewRegistry()

	stageExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "executions_total",
			Help:      "Total stage executions by stage and terminal status.",
		},
		[]string{"stage", "status"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Duration of a single stage execution, success or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~205s
		},
		[]string{"stage"},
	)

	jobRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "retries_total",
			Help:      "Total job retry attempts by stage.",
		},
		[]string{"stage"},
	)

	qualityGateWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality_gate",
			Name:      "warnings_total",
			Help:      "Total quality gate warnings raised by stage.",
		},
		[]string{"stage"},
	)

	runCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "completions_total",
			Help:      "Total runs reaching a terminal status.",
		},
		[]string{"status"},
	)

	runBudgetExceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "budget_exceeded_total",
			Help:      "Total runs failed due to budget exhaustion, by stage at which it tripped.",
		},
		[]string{"stage"},
	)

	runCostUSD = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "cost_usd",
			Help:      "Total API cost accrued by a completed run, in USD.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // $0.05 to ~$100
		},
		[]string{"status"},
	)

	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total calls made to an external provider, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Duration of a single provider call.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
		},
		[]string{"provider"},
	)

	providerCostUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cost_usd_total",
			Help:      "Total USD cost attributed to a provider across all runs.",
		},
		[]string{"provider"},
	)

	cacheHitRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Embedding cache hits / (hits + misses), as of the last snapshot.",
		},
	)

	cacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total embedding cache lookups by outcome (hit, durable_hit, miss).",
		},
		[]string{"outcome"},
	)

	batchQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batcher",
			Name:      "in_flight",
			Help:      "Current in-flight calls per batcher component.",
		},
		[]string{"component"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batcher",
			Name:      "circuit_open",
			Help:      "Whether a batcher's circuit breaker is currently open (1) or closed (0).",
		},
		[]string{"component"},
	)
)

func init() {
	Registry.MustRegister(
		stageExecutions,
		stageDuration,
		jobRetries,
		qualityGateWarnings,
		runCompletions,
		runBudgetExceeded,
		runCostUSD,
		providerCalls,
		providerDuration,
		providerCostUSD,
		cacheHitRatio,
		cacheOperations,
		batchQueueDepth,
		circuitState,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors in
// the Prometheus text exposition format, mounted by cmd/pipeline at
// /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordStage records the outcome and wall-clock duration of one stage
// execution. status is expected to be one of "completed", "failed", or
// "cancelled", mirroring the Job terminal statuses.
func RecordStage(stage string, status string, duration time.Duration) {
	stageExecutions.WithLabelValues(stage, status).Inc()
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordJobRetry records that a stage's job was retried after a
// transient failure.
func RecordJobRetry(stage string) {
	jobRetries.WithLabelValues(stage).Inc()
}

// RecordQualityGateWarning records that a stage's quality gate produced
// a warning, whether or not strict mode escalated it to a run failure.
func RecordQualityGateWarning(stage string) {
	qualityGateWarnings.WithLabelValues(stage).Inc()
}

// RecordRunCompletion records a run reaching a terminal status along
// with the total cost it accrued.
func RecordRunCompletion(status string, totalCostUSD float64) {
	runCompletions.WithLabelValues(status).Inc()
	runCostUSD.WithLabelValues(status).Observe(totalCostUSD)
}

// RecordBudgetExceeded records a run failing because its budget was
// exhausted before the named stage could dispatch.
func RecordBudgetExceeded(stage string) {
	runBudgetExceeded.WithLabelValues(stage).Inc()
}

// RecordProviderCall records one call to an external provider (an LLM,
// embedding, or metrics API), its outcome, duration, and any cost
// incurred.
func RecordProviderCall(provider string, err error, duration time.Duration, costUSD float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	providerCalls.WithLabelValues(provider, outcome).Inc()
	providerDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if costUSD > 0 {
		providerCostUSD.WithLabelValues(provider).Add(costUSD)
	}
}

// RecordCacheHit and RecordCacheMiss record individual embedding cache
// lookups; RecordCacheSnapshot additionally refreshes the hit-ratio
// gauge from a point-in-time Stats snapshot (see pkg/cache), since a
// ratio gauge can't be derived from independent Inc() calls alone.
func RecordCacheHit(durable bool) {
	if durable {
		cacheOperations.WithLabelValues("durable_hit").Inc()
		return
	}
	cacheOperations.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss that required computing a fresh
// embedding.
func RecordCacheMiss() {
	cacheOperations.WithLabelValues("miss").Inc()
}

// RecordCacheSnapshot sets the cache hit-ratio gauge from hits/misses
// counts taken at a point in time (e.g. cache.Cache.Stats()).
func RecordCacheSnapshot(hits, misses int64) {
	total := hits + misses
	if total == 0 {
		return
	}
	cacheHitRatio.Set(float64(hits) / float64(total))
}

// RecordBatcherState publishes a batcher component's current in-flight
// depth and circuit-breaker openness.
func RecordBatcherState(component string, inFlight int, circuitOpen bool) {
	batchQueueDepth.WithLabelValues(component).Set(float64(inFlight))
	v := 0.0
	if circuitOpen {
		v = 1.0
	}
	circuitState.WithLabelValues(component).Set(v)
}

package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/metrics"
	"github.com/kwforge/pipeline/pkg/models"
)

// runJobWithRetry drives a single Job through the job state machine around
// fn: Queued -> Running -> (Completed | retry via Retrying -> Queued | Failed).
// Retry eligibility is decided the same way the Batcher decides it for a
// single provider call — errtax.Kind.Retryable() — so a stage's own
// internal batching and the orchestrator's job-level retries apply one
// consistent policy.
func (o *Orchestrator) runJobWithRetry(ctx context.Context, job *models.Job, fn func(context.Context) error, agg *events.Aggregator) error {
	for {
		now := time.Now()
		if !job.Transition(models.JobStatusRunning, now) {
			return errtax.New(errtax.KindInternal, "orchestrator", "job "+job.ID+" could not enter running")
		}
		if err := o.store.UpdateJob(ctx, job); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			job.Transition(models.JobStatusCompleted, time.Now())
			return o.store.UpdateJob(ctx, job)
		}

		kind := errtax.KindOf(err)
		job.Error = err.Error()

		if ctx.Err() != nil {
			job.Transition(models.JobStatusCancelled, time.Now())
			o.store.UpdateJob(ctx, job)
			return ctx.Err()
		}

		if !kind.Retryable() || job.Attempt >= job.MaxAttempts {
			job.Transition(models.JobStatusFailed, time.Now())
			o.store.UpdateJob(ctx, job)
			return err
		}

		job.Transition(models.JobStatusFailed, time.Now())
		job.Transition(models.JobStatusRetrying, time.Now())
		if uerr := o.store.UpdateJob(ctx, job); uerr != nil {
			return uerr
		}

		metrics.RecordJobRetry(string(job.Stage))
		agg.UpdateStage(job.Stage, 0, events.StatusProgress, "retrying "+string(job.Stage)+" after: "+err.Error(), time.Now())

		wait := retryBackoff(job.Attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			job.Transition(models.JobStatusCancelled, time.Now())
			o.store.UpdateJob(ctx, job)
			return ctx.Err()
		}

		job.Transition(models.JobStatusQueued, time.Now())
		if err := o.store.UpdateJob(ctx, job); err != nil {
			return err
		}
	}
}

// retryBackoff mirrors the Batcher's jittered exponential backoff (pkg/batcher),
// applied here at the job/stage level rather than the per-call level.
func retryBackoff(attempt int) time.Duration {
	base := float64(batcher.InitialBackoff)
	for i := 1; i < attempt; i++ {
		base *= batcher.BackoffFactor
	}
	if base > float64(batcher.MaxBackoff) {
		base = float64(batcher.MaxBackoff)
	}
	jitter := base * batcher.JitterFraction * (2*rand.Float64() - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/models"
)

// Resume starts a fresh Run lineage-linked to a prior one. It never
// re-enters a terminal run's own state: per the Run state machine (models
// package), every terminal status is a sink, so "resuming" a failed or
// cancelled run means creating an entirely new Run row that shares the
// original's LineageID and records it as ParentRunID. Keywords, clusters,
// and the roadmap already produced by the parent are not copied forward —
// the new run re-executes the full DAG, since a partial run's artifacts may
// have been produced under since-changed settings.
func (o *Orchestrator) Resume(ctx context.Context, parent *models.Run, newID string, settings config.Settings, now time.Time) (*models.Run, error) {
	if !parent.Status.IsTerminal() {
		return nil, fmt.Errorf("run %s: cannot resume a run still in status %s", parent.ID, parent.Status)
	}

	next := models.NewRun(newID, parent.OwnerID, parent.Seeds, parent.Market, parent.Language, settings.BudgetLimit, now)
	next.LineageID = parent.LineageID
	parentID := parent.ID
	next.ParentRunID = &parentID

	if err := o.store.CreateRun(ctx, next); err != nil {
		return nil, fmt.Errorf("persist resumed run: %w", err)
	}

	o.Submit(ctx, next, settings)
	return next, nil
}

// Package store defines the Run Store Interface ( "I") and its two
// implementations: an in-memory fake for tests and single-process runs,
// and a Postgres-backed store for durable multi-process deployments.
package store

import (
	"context"
	"errors"

	"github.com/kwforge/pipeline/pkg/models"
)

// ErrNotFound is returned when a lookup by ID finds nothing.
var ErrNotFound = errors.New("store: not found")

// RunStore persists run state, keywords, clusters, and the roadmap.
// Every method is safe for concurrent use.
// Writes are idempotent keyed by the entity's own ID: saving the same
// Run/Keyword/Cluster/Job twice never duplicates it. Saves and updates
// overwrite; a repeated CreateRun/CreateJob overwrites in MemoryStore but
// keeps the first row in PostgresStore.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	UpdateRun(ctx context.Context, run *models.Run) error
	ListRuns(ctx context.Context, ownerID string) ([]*models.Run, error)

	// SaveKeywords upserts a batch of keywords belonging to runID, keyed
	// by (run_id, phrase) per the data model's uniqueness invariant.
	SaveKeywords(ctx context.Context, runID string, keywords []models.Keyword) error
	GetKeywords(ctx context.Context, runID string) ([]models.Keyword, error)

	SaveClusters(ctx context.Context, runID string, clusters []models.Cluster) error
	GetClusters(ctx context.Context, runID string) ([]models.Cluster, error)

	SaveRoadmap(ctx context.Context, roadmap *models.Roadmap) error
	GetRoadmap(ctx context.Context, runID string) (*models.Roadmap, error)

	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobsByRun(ctx context.Context, runID string) ([]*models.Job, error)

	// Close releases any held resources (connection pools). A no-op for
	// the in-memory implementation.
	Close()
}

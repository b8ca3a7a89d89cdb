package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kwforge/pipeline/pkg/models"
)

// MemoryStore is an in-process RunStore used by tests and single-binary
// deployments that don't need a durable backend. All accessors return
// copies, so callers cannot mutate stored state through an aliased slice.
type MemoryStore struct {
	mu sync.RWMutex

	runs     map[string]*models.Run
	keywords map[string][]models.Keyword // by run_id
	clusters map[string][]models.Cluster // by run_id
	roadmaps map[string]*models.Roadmap  // by run_id
	jobs     map[string]*models.Job
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:     make(map[string]*models.Run),
		keywords: make(map[string][]models.Keyword),
		clusters: make(map[string][]models.Cluster),
		roadmaps: make(map[string]*models.Roadmap),
		jobs:     make(map[string]*models.Job),
	}
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) CreateRun(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (m *MemoryStore) UpdateRun(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context, ownerID string) ([]*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Run
	for _, run := range m.runs {
		if ownerID != "" && run.OwnerID != ownerID {
			continue
		}
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SaveKeywords(_ context.Context, runID string, keywords []models.Keyword) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPhrase := make(map[string]models.Keyword, len(m.keywords[runID])+len(keywords))
	for _, k := range m.keywords[runID] {
		byPhrase[k.Phrase] = k
	}
	for _, k := range keywords {
		byPhrase[k.Phrase] = k
	}
	merged := make([]models.Keyword, 0, len(byPhrase))
	for _, k := range byPhrase {
		merged = append(merged, k)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Phrase < merged[j].Phrase })
	m.keywords[runID] = merged
	return nil
}

func (m *MemoryStore) GetKeywords(_ context.Context, runID string) ([]models.Keyword, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Keyword(nil), m.keywords[runID]...), nil
}

func (m *MemoryStore) SaveClusters(_ context.Context, runID string, clusters []models.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := make(map[string]models.Cluster, len(m.clusters[runID])+len(clusters))
	for _, c := range m.clusters[runID] {
		byID[c.ID] = c
	}
	for _, c := range clusters {
		byID[c.ID] = c
	}
	merged := make([]models.Cluster, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	m.clusters[runID] = merged
	return nil
}

func (m *MemoryStore) GetClusters(_ context.Context, runID string) ([]models.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Cluster(nil), m.clusters[runID]...), nil
}

func (m *MemoryStore) SaveRoadmap(_ context.Context, roadmap *models.Roadmap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *roadmap
	m.roadmaps[roadmap.RunID] = &cp
	return nil
}

func (m *MemoryStore) GetRoadmap(_ context.Context, runID string) (*models.Roadmap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rm, ok := m.roadmaps[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rm
	return &cp, nil
}

func (m *MemoryStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) ListJobsByRun(_ context.Context, runID string) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Job
	for _, job := range m.jobs {
		if job.RunID != runID {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ RunStore = (*MemoryStore)(nil)

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kwforge/pipeline/pkg/models"
)

// PostgresStore is the durable RunStore implementation, backed by a
// pgxpool connection pool. Schema migrations run once at construction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres, applies pending migrations, and
// returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := runMigrations(pgx5DSN(cfg.DSN())); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// HealthStatus reports connectivity and pool utilization, mirroring the
// teacher's database.HealthStatus shape.
type HealthStatus struct {
	Status        string        `json:"status"`
	ResponseTime  time.Duration `json:"response_time_ms"`
	AcquiredConns int32         `json:"acquired_conns"`
	IdleConns     int32         `json:"idle_conns"`
	MaxConns      int32         `json:"max_conns"`
	NewConnsCount int64         `json:"new_conns_count"`
}

func (s *PostgresStore) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}
	stat := s.pool.Stat()
	return &HealthStatus{
		Status:        "healthy",
		ResponseTime:  time.Since(start),
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		MaxConns:      stat.MaxConns(),
		NewConnsCount: stat.NewConnsCount(),
	}, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	apiUsage, err := json.Marshal(run.APIUsage)
	if err != nil {
		return fmt.Errorf("store: marshal api_usage: %w", err)
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("store: marshal warnings: %w", err)
	}
	errorLog, err := json.Marshal(run.ErrorLog)
	if err != nil {
		return fmt.Errorf("store: marshal error_log: %w", err)
	}
	completedStages := stagesToStrings(run.CompletedStages)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (id, owner_id, seeds, market, language, status, current_stage,
			completed_stages, progress, api_usage_json, budget_limit, lineage_id,
			parent_run_id, warnings_json, error_log_json, started_at, completed_at,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO NOTHING`,
		run.ID, run.OwnerID, run.Seeds, run.Market, run.Language, string(run.Status),
		string(run.CurrentStage), completedStages, run.Progress, apiUsage, run.BudgetLimit,
		run.LineageID, run.ParentRunID, warnings, errorLog, run.StartedAt, run.CompletedAt,
		run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.Run) error {
	apiUsage, err := json.Marshal(run.APIUsage)
	if err != nil {
		return fmt.Errorf("store: marshal api_usage: %w", err)
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("store: marshal warnings: %w", err)
	}
	errorLog, err := json.Marshal(run.ErrorLog)
	if err != nil {
		return fmt.Errorf("store: marshal error_log: %w", err)
	}
	completedStages := stagesToStrings(run.CompletedStages)

	tag, err := s.pool.Exec(ctx, `
		UPDATE runs SET status=$2, current_stage=$3, completed_stages=$4, progress=$5,
			api_usage_json=$6, budget_limit=$7, warnings_json=$8, error_log_json=$9,
			started_at=$10, completed_at=$11, updated_at=$12
		WHERE id=$1`,
		run.ID, string(run.Status), string(run.CurrentStage), completedStages, run.Progress,
		apiUsage, run.BudgetLimit, warnings, errorLog, run.StartedAt, run.CompletedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, seeds, market, language, status, current_stage,
			completed_stages, progress, api_usage_json, budget_limit, lineage_id,
			parent_run_id, warnings_json, error_log_json, started_at, completed_at,
			created_at, updated_at
		FROM runs WHERE id=$1`, id)
	return scanRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, ownerID string) ([]*models.Run, error) {
	var rows pgx.Rows
	var err error
	if ownerID == "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, owner_id, seeds, market, language, status, current_stage,
				completed_stages, progress, api_usage_json, budget_limit, lineage_id,
				parent_run_id, warnings_json, error_log_json, started_at, completed_at,
				created_at, updated_at
			FROM runs ORDER BY created_at`)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, owner_id, seeds, market, language, status, current_stage,
				completed_stages, progress, api_usage_json, budget_limit, lineage_id,
				parent_run_id, warnings_json, error_log_json, started_at, completed_at,
				created_at, updated_at
			FROM runs WHERE owner_id=$1 ORDER BY created_at`, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// rowScanner covers both pgx.Row and pgx.Rows, letting scanRun serve both
// the single-row and multi-row query paths.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var status, currentStage string
	var completedStages []string
	var apiUsage, warnings, errorLog []byte

	err := row.Scan(&run.ID, &run.OwnerID, &run.Seeds, &run.Market, &run.Language, &status,
		&currentStage, &completedStages, &run.Progress, &apiUsage, &run.BudgetLimit,
		&run.LineageID, &run.ParentRunID, &warnings, &errorLog, &run.StartedAt, &run.CompletedAt,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.CurrentStage = models.Stage(currentStage)
	run.CompletedStages = stringsToStages(completedStages)
	run.APIUsage = models.NewUsageLedger()
	if len(apiUsage) > 0 {
		if err := json.Unmarshal(apiUsage, run.APIUsage); err != nil {
			return nil, fmt.Errorf("store: unmarshal api_usage: %w", err)
		}
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &run.Warnings); err != nil {
			return nil, fmt.Errorf("store: unmarshal warnings: %w", err)
		}
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &run.ErrorLog); err != nil {
			return nil, fmt.Errorf("store: unmarshal error_log: %w", err)
		}
	}
	return &run, nil
}

func stagesToStrings(stages []models.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

func stringsToStages(strs []string) []models.Stage {
	out := make([]models.Stage, len(strs))
	for i, s := range strs {
		out[i] = models.Stage(s)
	}
	return out
}

func (s *PostgresStore) SaveKeywords(ctx context.Context, runID string, keywords []models.Keyword) error {
	if len(keywords) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, k := range keywords {
		batch.Queue(`
			INSERT INTO keywords (id, run_id, phrase, tier, parent_phrase, volume, difficulty,
				intent, relevance, trend, cpc, source, confidence, blended_score, quick_win,
				cluster_id, embedding, top_serp_urls, overall_rank, tier_rank, cluster_rank,
				created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
			ON CONFLICT (run_id, phrase) DO UPDATE SET
				volume=EXCLUDED.volume, difficulty=EXCLUDED.difficulty, intent=EXCLUDED.intent,
				relevance=EXCLUDED.relevance, trend=EXCLUDED.trend, cpc=EXCLUDED.cpc,
				source=EXCLUDED.source, confidence=EXCLUDED.confidence,
				blended_score=EXCLUDED.blended_score, quick_win=EXCLUDED.quick_win,
				cluster_id=EXCLUDED.cluster_id, embedding=EXCLUDED.embedding,
				top_serp_urls=EXCLUDED.top_serp_urls, overall_rank=EXCLUDED.overall_rank,
				tier_rank=EXCLUDED.tier_rank, cluster_rank=EXCLUDED.cluster_rank,
				updated_at=EXCLUDED.updated_at`,
			k.ID, runID, k.Phrase, string(k.Tier), k.ParentPhrase, k.Volume, k.Difficulty,
			string(k.Intent), k.Relevance, k.Trend, k.CPC, string(k.Source), k.Confidence,
			k.BlendedScore, k.QuickWin, k.ClusterID, k.Embedding, k.TopSERPURLs, k.OverallRank,
			k.TierRank, k.ClusterRank, k.CreatedAt, k.UpdatedAt)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range keywords {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: save keywords: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetKeywords(ctx context.Context, runID string) ([]models.Keyword, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, phrase, tier, parent_phrase, volume, difficulty, intent, relevance, trend,
			cpc, source, confidence, blended_score, quick_win, cluster_id, embedding,
			top_serp_urls, overall_rank, tier_rank, cluster_rank, created_at, updated_at
		FROM keywords WHERE run_id=$1 ORDER BY phrase`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get keywords: %w", err)
	}
	defer rows.Close()

	var out []models.Keyword
	for rows.Next() {
		var k models.Keyword
		var tier, intent, source string
		if err := rows.Scan(&k.ID, &k.Phrase, &tier, &k.ParentPhrase, &k.Volume, &k.Difficulty,
			&intent, &k.Relevance, &k.Trend, &k.CPC, &source, &k.Confidence, &k.BlendedScore,
			&k.QuickWin, &k.ClusterID, &k.Embedding, &k.TopSERPURLs, &k.OverallRank, &k.TierRank,
			&k.ClusterRank, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan keyword: %w", err)
		}
		k.RunID = runID
		k.Tier = models.Tier(tier)
		k.Intent = models.Intent(intent)
		k.Source = models.ProviderSource(source)
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveClusters(ctx context.Context, runID string, clusters []models.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range clusters {
		intentMix, err := json.Marshal(c.IntentMix)
		if err != nil {
			return fmt.Errorf("store: marshal intent_mix: %w", err)
		}
		batch.Queue(`
			INSERT INTO clusters (id, run_id, label, size, score, intent_mix_json,
				representative_phrases, similarity_threshold, centroid, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (id) DO UPDATE SET
				label=EXCLUDED.label, size=EXCLUDED.size, score=EXCLUDED.score,
				intent_mix_json=EXCLUDED.intent_mix_json,
				representative_phrases=EXCLUDED.representative_phrases,
				similarity_threshold=EXCLUDED.similarity_threshold, centroid=EXCLUDED.centroid,
				updated_at=EXCLUDED.updated_at`,
			c.ID, runID, c.Label, c.Size, c.Score, intentMix, c.RepresentativePhrases,
			c.SimilarityThreshold, c.Centroid, c.CreatedAt, c.UpdatedAt)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range clusters {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: save clusters: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetClusters(ctx context.Context, runID string) ([]models.Cluster, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, size, score, intent_mix_json, representative_phrases,
			similarity_threshold, centroid, created_at, updated_at
		FROM clusters WHERE run_id=$1 ORDER BY score DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get clusters: %w", err)
	}
	defer rows.Close()

	var out []models.Cluster
	for rows.Next() {
		var c models.Cluster
		var intentMix []byte
		if err := rows.Scan(&c.ID, &c.Label, &c.Size, &c.Score, &intentMix,
			&c.RepresentativePhrases, &c.SimilarityThreshold, &c.Centroid, &c.CreatedAt,
			&c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan cluster: %w", err)
		}
		c.RunID = runID
		if len(intentMix) > 0 {
			if err := json.Unmarshal(intentMix, &c.IntentMix); err != nil {
				return nil, fmt.Errorf("store: unmarshal intent_mix: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveRoadmap(ctx context.Context, roadmap *models.Roadmap) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM roadmap_items WHERE run_id=$1`, roadmap.RunID); err != nil {
		return fmt.Errorf("store: clear roadmap items: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range roadmap.Items {
		batch.Queue(`
			INSERT INTO roadmap_items (id, run_id, cluster_id, post_id, stage, primary_keyword,
				secondary_keywords, intent, volume, difficulty, blended_score, quick_win,
				suggested_title, dri, due_date, notes, source_urls, cluster_label, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
			item.ID, roadmap.RunID, item.ClusterID, item.PostID, string(item.Stage),
			item.PrimaryKeyword, item.SecondaryKeywords, string(item.Intent), item.Volume,
			item.Difficulty, item.BlendedScore, item.QuickWin, item.SuggestedTitle, item.DRI,
			nullableDate(item.DueDate), item.Notes, item.SourceURLs, item.ClusterLabel, item.CreatedAt)
	}
	if len(roadmap.Items) > 0 {
		results := tx.SendBatch(ctx, batch)
		for range roadmap.Items {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("store: save roadmap items: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("store: save roadmap items: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetRoadmap(ctx context.Context, runID string) (*models.Roadmap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, cluster_id, post_id, stage, primary_keyword, secondary_keywords, intent,
			volume, difficulty, blended_score, quick_win, suggested_title, dri, due_date, notes,
			source_urls, cluster_label, created_at
		FROM roadmap_items WHERE run_id=$1 ORDER BY post_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get roadmap: %w", err)
	}
	defer rows.Close()

	var items []*models.RoadmapItem
	for rows.Next() {
		var it models.RoadmapItem
		var stage, intent string
		var dueDate *time.Time
		if err := rows.Scan(&it.ID, &it.ClusterID, &it.PostID, &stage, &it.PrimaryKeyword,
			&it.SecondaryKeywords, &intent, &it.Volume, &it.Difficulty, &it.BlendedScore,
			&it.QuickWin, &it.SuggestedTitle, &it.DRI, &dueDate, &it.Notes, &it.SourceURLs,
			&it.ClusterLabel, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan roadmap item: %w", err)
		}
		it.RunID = runID
		it.Stage = models.RoadmapStage(stage)
		it.Intent = models.Intent(intent)
		if dueDate != nil {
			it.DueDate = dueDate.Format("2006-01-02")
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &models.Roadmap{RunID: runID, Items: items}, nil
}

func nullableDate(ymd string) *time.Time {
	if ymd == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", ymd)
	if err != nil {
		return nil
	}
	return &t
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	var result []byte
	var err error
	if job.Result != nil {
		result, err = json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("store: marshal job result: %w", err)
		}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, run_id, stage, priority, status, dependencies, attempt,
			max_attempts, result_json, error, started_at, completed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING`,
		job.ID, job.RunID, string(job.Stage), job.Priority, string(job.Status),
		job.Dependencies, job.Attempt, job.MaxAttempts, result, job.Error, job.StartedAt,
		job.CompletedAt, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job) error {
	var result []byte
	var err error
	if job.Result != nil {
		result, err = json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("store: marshal job result: %w", err)
		}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status=$2, attempt=$3, result_json=$4, error=$5, started_at=$6,
			completed_at=$7
		WHERE id=$1`,
		job.ID, string(job.Status), job.Attempt, result, job.Error, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("store: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, run_id, stage, priority, status, dependencies, attempt, max_attempts,
			result_json, error, started_at, completed_at, created_at
		FROM jobs WHERE id=$1`, id)
	return scanJob(row)
}

func (s *PostgresStore) ListJobsByRun(ctx context.Context, runID string) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, stage, priority, status, dependencies, attempt, max_attempts,
			result_json, error, started_at, completed_at, created_at
		FROM jobs WHERE run_id=$1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var stage, status string
	var result []byte

	err := row.Scan(&job.ID, &job.RunID, &stage, &job.Priority, &status, &job.Dependencies,
		&job.Attempt, &job.MaxAttempts, &result, &job.Error, &job.StartedAt, &job.CompletedAt,
		&job.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan job: %w", err)
	}
	job.Stage = models.Stage(stage)
	job.Status = models.JobStatus(status)
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("store: unmarshal job result: %w", err)
		}
	}
	return &job, nil
}

var _ RunStore = (*PostgresStore)(nil)

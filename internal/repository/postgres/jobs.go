// Package postgres provides a durable archive for enrichment job
// snapshots, so in-memory sessions can be restored after a restart.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stayops/guest-insights/internal/enrich"
)

// JobRepo archives enrichment job snapshots in PostgreSQL. The job payload
// (cursor plus the partially enriched dataset) is stored as JSONB; the
// dataset key and kind identify the row for upserts.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job archive.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

// EnsureSchema creates the jobs table if it does not exist yet.
func (r *JobRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS enrichment_jobs (
			dataset_key TEXT NOT NULL,
			kind        TEXT NOT NULL,
			job_id      TEXT NOT NULL,
			cursor      INT  NOT NULL,
			payload     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (dataset_key, kind)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure enrichment_jobs schema: %w", err)
	}
	return nil
}

// Save upserts a job snapshot keyed by (dataset_key, kind).
func (r *JobRepo) Save(ctx context.Context, job *enrich.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO enrichment_jobs
			(dataset_key, kind, job_id, cursor, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dataset_key, kind) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			cursor = EXCLUDED.cursor,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, job.DatasetKey, job.Kind, job.ID, job.Cursor, payload, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job snapshot: %w", err)
	}
	return nil
}

// Get loads a job snapshot, or nil when none was archived.
func (r *JobRepo) Get(ctx context.Context, datasetKey, kind string) (*enrich.Job, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload FROM enrichment_jobs
		WHERE dataset_key = $1 AND kind = $2
	`, datasetKey, kind).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job snapshot: %w", err)
	}

	var job enrich.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job payload: %w", err)
	}
	return &job, nil
}

// Delete removes every archived job for a dataset.
func (r *JobRepo) Delete(ctx context.Context, datasetKey string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM enrichment_jobs WHERE dataset_key = $1
	`, datasetKey)
	if err != nil {
		return fmt.Errorf("delete job snapshots: %w", err)
	}
	return nil
}

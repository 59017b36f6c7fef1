package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

type JobRepository struct{ db *sql.DB }

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

// Save insert/update job record
func (r *JobRepository) Save(ctx context.Context, j *domain.AnalysisJob) error {
	const q = `
INSERT INTO analysis_jobs
(id, batch_id, tenant_id, document_id, format, state, progress,
 error_code, error_message, enqueued_at, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
 state = EXCLUDED.state,
 progress = EXCLUDED.progress,
 error_code = EXCLUDED.error_code,
 error_message = EXCLUDED.error_message,
 started_at = EXCLUDED.started_at,
 finished_at = EXCLUDED.finished_at;`

	tenant := stringOrDash(j.TenantID)
	enq := j.EnqueuedAt
	if enq.IsZero() {
		enq = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.BatchID, tenant, j.DocumentID, j.Format, j.State, j.Progress,
		j.ErrorCode, j.ErrorMessage, enq, nullTime(j.StartedAt), nullTime(j.FinishedAt),
	)
	return err
}

// Get by ID + Tenant
func (r *JobRepository) Get(ctx context.Context, tenant string, id domain.JobID) (*domain.AnalysisJob, error) {
	const q = `
SELECT id, batch_id, tenant_id, document_id, format, state, progress,
       error_code, error_message, enqueued_at, started_at, finished_at
FROM analysis_jobs
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	return scanJob(r.db.QueryRowContext(ctx, q, tenant, id).Scan)
}

// UpdateProgress hanya update kolom state + progress
func (r *JobRepository) UpdateProgress(ctx context.Context, tenant string, id domain.JobID, state domain.State, progress int) error {
	const q = `
UPDATE analysis_jobs
SET state = $1, progress = $2,
    started_at = COALESCE(started_at, NOW())
WHERE tenant_id = $3 AND id = $4;`
	_, err := r.db.ExecContext(ctx, q, state, progress, tenant, id)
	return err
}

// Finish writes the terminal snapshot of a job
func (r *JobRepository) Finish(ctx context.Context, tenant string, j *domain.AnalysisJob) error {
	const q = `
UPDATE analysis_jobs
SET state = $1, progress = $2,
    error_code = $3, error_message = $4,
    finished_at = $5
WHERE tenant_id = $6 AND id = $7;`
	_, err := r.db.ExecContext(ctx, q,
		j.State, j.Progress, j.ErrorCode, j.ErrorMessage, nullTime(j.FinishedAt),
		tenant, j.ID,
	)
	return err
}

// SaveBatch insert/update batch record; job_ids disimpan sebagai JSONB array
func (r *JobRepository) SaveBatch(ctx context.Context, b *domain.BatchJob) error {
	const q = `
INSERT INTO analysis_batches (id, tenant_id, job_ids, submitted_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET job_ids = EXCLUDED.job_ids;`
	ids, err := json.Marshal(b.JobIDs)
	if err != nil {
		return err
	}
	sub := b.SubmittedAt
	if sub.IsZero() {
		sub = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q, b.ID, stringOrDash(b.TenantID), string(ids), sub)
	return err
}

// GetBatch by ID + Tenant
func (r *JobRepository) GetBatch(ctx context.Context, tenant string, id domain.BatchID) (*domain.BatchJob, error) {
	const q = `
SELECT id, tenant_id, job_ids, submitted_at
FROM analysis_batches
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	var b domain.BatchJob
	var ids string
	if err := r.db.QueryRowContext(ctx, q, tenant, id).Scan(&b.ID, &b.TenantID, &ids, &b.SubmittedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &b.JobIDs); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByBatch returns every job in the batch, enqueue order
func (r *JobRepository) ListByBatch(ctx context.Context, tenant string, id domain.BatchID) ([]*domain.AnalysisJob, error) {
	const q = `
SELECT id, batch_id, tenant_id, document_id, format, state, progress,
       error_code, error_message, enqueued_at, started_at, finished_at
FROM analysis_jobs
WHERE tenant_id=$1 AND batch_id=$2
ORDER BY enqueued_at ASC, id ASC;`
	rows, err := r.db.QueryContext(ctx, q, tenant, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(scan func(...any) error) (*domain.AnalysisJob, error) {
	var j domain.AnalysisJob
	var started, finished sql.NullTime
	if err := scan(
		&j.ID, &j.BatchID, &j.TenantID, &j.DocumentID, &j.Format, &j.State, &j.Progress,
		&j.ErrorCode, &j.ErrorMessage, &j.EnqueuedAt, &started, &finished,
	); err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		j.FinishedAt = &t
	}
	return &j, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Save insert/update job record
func (r *JobRepository) Save(ctx context.Context, j *domain.AnalysisJob) error {
	const q = `
INSERT INTO analysis_jobs
(id, batch_id, tenant_id, document_id, format, state, progress,
 error_code, error_message, enqueued_at, started_at, finished_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 state=VALUES(state), progress=VALUES(progress),
 error_code=VALUES(error_code), error_message=VALUES(error_message),
 started_at=VALUES(started_at), finished_at=VALUES(finished_at);
`
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
WHERE tenant_id=? AND id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)
	return scanJob(row.Scan)
}

// UpdateProgress hanya update kolom state + progress
func (r *JobRepository) UpdateProgress(ctx context.Context, tenant string, id domain.JobID, state domain.State, progress int) error {
	const q = `
UPDATE analysis_jobs
SET state = ?, progress = ?,
    started_at = COALESCE(started_at, NOW())
WHERE tenant_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, state, progress, tenant, id)
	return err
}

// Finish writes the terminal snapshot of a job
func (r *JobRepository) Finish(ctx context.Context, tenant string, j *domain.AnalysisJob) error {
	const q = `
UPDATE analysis_jobs
SET state = ?, progress = ?,
    error_code = ?, error_message = ?,
    finished_at = ?
WHERE tenant_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q,
		j.State, j.Progress, j.ErrorCode, j.ErrorMessage, nullTime(j.FinishedAt),
		tenant, j.ID,
	)
	return err
}

// SaveBatch insert/update batch record; job_ids disimpan sebagai JSON array
func (r *JobRepository) SaveBatch(ctx context.Context, b *domain.BatchJob) error {
	const q = `
INSERT INTO analysis_batches (id, tenant_id, job_ids, submitted_at)
VALUES (?,?,?,?)
ON DUPLICATE KEY UPDATE job_ids=VALUES(job_ids);
`
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
WHERE tenant_id=? AND id=? LIMIT 1;
`
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
WHERE tenant_id=? AND batch_id=?
ORDER BY enqueued_at ASC, id ASC;
`
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

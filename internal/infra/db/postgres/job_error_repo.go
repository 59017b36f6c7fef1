package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/joberrors"
)

type JobErrorRepository struct{ db *sql.DB }

func NewJobErrorRepository(db *sql.DB) *JobErrorRepository { return &JobErrorRepository{db: db} }

func (r *JobErrorRepository) Save(ctx context.Context, e *domain.JobError) error {
	const q = `
INSERT INTO analysis_job_errors
  (tenant_id, job_id, detector, phase, code, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	tenant := stringOrDash(e.TenantID)
	job := stringOrDash(e.JobID)
	phase := e.Phase
	if strings.TrimSpace(phase) == "" {
		phase = "other"
	}
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else {
		var js any
		if json.Unmarshal([]byte(details), &js) != nil {
			b, _ := json.Marshal(map[string]string{"raw": details})
			details = string(b)
		}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, tenant, job, e.Detector, phase, e.Code, msg, details, created)
	return err
}

func (r *JobErrorRepository) ListByJob(ctx context.Context, tenant string, jobID string, limit int) ([]*domain.JobError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, job_id, detector, phase, code, message, details_json, created_at
FROM analysis_job_errors
WHERE tenant_id = $1 AND job_id = $2
ORDER BY created_at ASC, id ASC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.JobError
	for rows.Next() {
		var e domain.JobError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.JobID, &e.Detector, &e.Phase, &e.Code, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

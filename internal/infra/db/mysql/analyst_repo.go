package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analyst"
)

type AnalystRepository struct {
	db *sql.DB
}

func NewAnalystRepository(db *sql.DB) *AnalystRepository {
	return &AnalystRepository{db: db}
}

// Save inserts an examination record
func (r *AnalystRepository) Save(ctx context.Context, a *domain.Examination) error {
	const q = `
INSERT INTO document_examinations
  (id, tenant_id, job_id, document_id, result_json, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  tenant_id=VALUES(tenant_id), job_id=VALUES(job_id), document_id=VALUES(document_id), result_json=VALUES(result_json);
`
	tenant := stringOrDash(a.TenantID)
	result := a.Result
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
		result = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q, a.ID, tenant, a.JobID, a.DocumentID, result, createdAt)
	return err
}

// Paginate returns a page of examinations ordered by created_at desc
func (r *AnalystRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Examination, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, job_id, document_id, result_json, created_at
FROM document_examinations
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Examination
	for rows.Next() {
		var a domain.Examination
		if err := rows.Scan(&a.ID, &a.TenantID, &a.JobID, &a.DocumentID, &a.Result, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// LatestByJob returns the newest examination for one job
func (r *AnalystRepository) LatestByJob(ctx context.Context, tenant string, jobID string) (*domain.Examination, error) {
	const q = `
SELECT id, tenant_id, job_id, document_id, result_json, created_at
FROM document_examinations
WHERE tenant_id=? AND job_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	var a domain.Examination
	if err := r.db.QueryRowContext(ctx, q, tenant, jobID).Scan(&a.ID, &a.TenantID, &a.JobID, &a.DocumentID, &a.Result, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

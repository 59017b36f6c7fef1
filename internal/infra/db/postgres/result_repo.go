package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

type ResultRepository struct{ db *sql.DB }

func NewResultRepository(db *sql.DB) *ResultRepository { return &ResultRepository{db: db} }

// Save insert result record; immutable, duplicate key cuma refresh
func (r *ResultRepository) Save(ctx context.Context, res *domain.AnalysisResult) error {
	const q = `
INSERT INTO analysis_results
(job_id, tenant_id, document_id, format, indicators_json, confidence, risk, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (job_id) DO UPDATE SET
 indicators_json = EXCLUDED.indicators_json,
 confidence = EXCLUDED.confidence,
 risk = EXCLUDED.risk,
 completed_at = EXCLUDED.completed_at;`
	ind, err := json.Marshal(res.Indicators)
	if err != nil {
		return err
	}
	completed := res.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		res.JobID, stringOrDash(res.TenantID), res.DocumentID, res.Format,
		string(ind), res.Confidence, res.Risk, completed,
	)
	return err
}

// GetByJob fetch result milik satu job
func (r *ResultRepository) GetByJob(ctx context.Context, tenant, jobID string) (*domain.AnalysisResult, error) {
	const q = `
SELECT job_id, tenant_id, document_id, format, indicators_json, confidence, risk, completed_at
FROM analysis_results
WHERE tenant_id=$1 AND job_id=$2
LIMIT 1;`
	return scanResult(r.db.QueryRowContext(ctx, q, tenant, jobID).Scan)
}

// Latest results per tenant
func (r *ResultRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.AnalysisResult, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT job_id, tenant_id, document_id, format, indicators_json, confidence, risk, completed_at
FROM analysis_results
WHERE tenant_id=$1
ORDER BY completed_at DESC, job_id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResults(rows)
}

// Summary counts results per risk bucket since N days
func (r *ResultRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.IndicatorCounts, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)
	const q = `
SELECT COUNT(*) AS total_analyses,
       COALESCE(SUM(CASE WHEN risk='CRITICAL' THEN 1 ELSE 0 END),0) AS critical,
       COALESCE(SUM(CASE WHEN risk='HIGH'     THEN 1 ELSE 0 END),0) AS high,
       COALESCE(SUM(CASE WHEN risk='MEDIUM'   THEN 1 ELSE 0 END),0) AS medium,
       COALESCE(SUM(CASE WHEN risk='LOW'      THEN 1 ELSE 0 END),0) AS low
FROM analysis_results
WHERE tenant_id=$1 AND completed_at >= $2;`
	var c domain.IndicatorCounts
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&c.Total, &c.Critical, &c.High, &c.Medium, &c.Low); err != nil {
		return domain.IndicatorCounts{}, err
	}
	return c, nil
}

// Paginate with offset + limit (classic pagination)
func (r *ResultRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.AnalysisResult, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	const q = `
SELECT job_id, tenant_id, document_id, format, indicators_json, confidence, risk, completed_at
FROM analysis_results
WHERE tenant_id=$1
ORDER BY completed_at DESC, job_id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectResults(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_results WHERE tenant_id=$1`, tenant,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Cursor-based pagination (after cursorTime, cursorJobID)
func (r *ResultRepository) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorJobID string, pageSize int) ([]*domain.AnalysisResult, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	const q = `
SELECT job_id, tenant_id, document_id, format, indicators_json, confidence, risk, completed_at
FROM analysis_results
WHERE tenant_id=$1
  AND (completed_at < $2 OR (completed_at = $2 AND job_id < $3))
ORDER BY completed_at DESC, job_id DESC
LIMIT $4;`
	rows, err := r.db.QueryContext(ctx, q, tenant, cursorTime, cursorJobID, pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResults(rows)
}

func scanResult(scan func(...any) error) (*domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	var ind string
	if err := scan(
		&res.JobID, &res.TenantID, &res.DocumentID, &res.Format,
		&ind, &res.Confidence, &res.Risk, &res.CompletedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ind), &res.Indicators); err != nil {
		return nil, err
	}
	return &res, nil
}

func collectResults(rows *sql.Rows) ([]*domain.AnalysisResult, error) {
	var out []*domain.AnalysisResult
	for rows.Next() {
		res, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

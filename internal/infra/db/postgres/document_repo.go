package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

type DocumentRepository struct{ db *sql.DB }

func NewDocumentRepository(db *sql.DB) *DocumentRepository { return &DocumentRepository{db: db} }

// Save upsert descriptor keyed by content hash
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
(id, tenant_id, name, declared_format, sniffed_format, size_bytes,
 content_ref, correlation_id, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (tenant_id, id) DO UPDATE SET
 name = EXCLUDED.name,
 declared_format = EXCLUDED.declared_format,
 sniffed_format = EXCLUDED.sniffed_format,
 content_ref = EXCLUDED.content_ref,
 correlation_id = EXCLUDED.correlation_id;`
	ingested := d.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		d.ID, stringOrDash(d.TenantID), d.Name, d.DeclaredFormat, d.SniffedFormat,
		d.SizeBytes, d.ContentRef, d.CorrelationID, ingested,
	)
	return err
}

// Get by content hash + tenant
func (r *DocumentRepository) Get(ctx context.Context, tenant string, id domain.DocumentID) (*domain.Document, error) {
	const q = `
SELECT id, tenant_id, name, declared_format, sniffed_format, size_bytes,
       content_ref, correlation_id, ingested_at
FROM documents
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	var d domain.Document
	if err := r.db.QueryRowContext(ctx, q, tenant, id).Scan(
		&d.ID, &d.TenantID, &d.Name, &d.DeclaredFormat, &d.SniffedFormat,
		&d.SizeBytes, &d.ContentRef, &d.CorrelationID, &d.IngestedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Save upsert descriptor; id = content hash, jadi resubmit bytes identik
// cuma refresh baris yang sama
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
(id, tenant_id, name, declared_format, sniffed_format, size_bytes,
 content_ref, correlation_id, ingested_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 name=VALUES(name), declared_format=VALUES(declared_format),
 sniffed_format=VALUES(sniffed_format), content_ref=VALUES(content_ref),
 correlation_id=VALUES(correlation_id);
`
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
WHERE tenant_id=? AND id=? LIMIT 1;
`
	var d domain.Document
	if err := r.db.QueryRowContext(ctx, q, tenant, id).Scan(
		&d.ID, &d.TenantID, &d.Name, &d.DeclaredFormat, &d.SniffedFormat,
		&d.SizeBytes, &d.ContentRef, &d.CorrelationID, &d.IngestedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/custody"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

type CustodyStore struct{ db *sql.DB }

func NewCustodyStore(db *sql.DB) *CustodyStore { return &CustodyStore{db: db} }

// Append inserts the next chain entry. Plain INSERT; PK
// (tenant_id, document_id, seq) menolak duplicate seq.
func (s *CustodyStore) Append(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO custody_entries
(tenant_id, document_id, seq, actor, action, at_unix_nano, prev_hash, hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := s.db.ExecContext(ctx, q,
		e.TenantID, e.DocumentID, e.Seq, e.Actor, e.Action,
		e.At.UTC().UnixNano(), e.PrevHash, e.Hash,
	)
	return err
}

// List returns the full chain in seq order
func (s *CustodyStore) List(ctx context.Context, tenant string, doc documents.DocumentID) ([]*domain.Entry, error) {
	const q = `
SELECT tenant_id, document_id, seq, actor, action, at_unix_nano, prev_hash, hash
FROM custody_entries
WHERE tenant_id=$1 AND document_id=$2
ORDER BY seq ASC;`
	rows, err := s.db.QueryContext(ctx, q, tenant, doc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		var nanos int64
		if err := rows.Scan(
			&e.TenantID, &e.DocumentID, &e.Seq, &e.Actor, &e.Action,
			&nanos, &e.PrevHash, &e.Hash,
		); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, nanos).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Head returns last seq + hash, or (0, ZeroHash) when the chain is empty
func (s *CustodyStore) Head(ctx context.Context, tenant string, doc documents.DocumentID) (int64, string, error) {
	const q = `
SELECT seq, hash FROM custody_entries
WHERE tenant_id=$1 AND document_id=$2
ORDER BY seq DESC LIMIT 1;`
	var seq int64
	var hash string
	err := s.db.QueryRowContext(ctx, q, tenant, doc).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ZeroHash, nil
	}
	if err != nil {
		return 0, "", err
	}
	return seq, hash, nil
}

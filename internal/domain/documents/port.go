package documents

import "context"

// ContentStore port (interface untuk isi dokumen mentah)
type ContentStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Repository port (interface untuk metadata dokumen; Save = upsert,
// re-submit bytes identik tidak boleh bikin baris baru)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	Get(ctx context.Context, tenant string, id DocumentID) (*Document, error)
}

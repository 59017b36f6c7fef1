package custody

import (
	"context"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// Store port (interface untuk persistence chain).
// Head harus balikin (0, ZeroHash, nil) kalau chain belum ada.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, tenant string, doc documents.DocumentID) ([]*Entry, error)
	Head(ctx context.Context, tenant string, doc documents.DocumentID) (int64, string, error)
}

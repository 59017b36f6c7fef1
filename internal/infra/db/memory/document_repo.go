package memory

import (
	"context"
	"sync"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

// DocumentRepository stores document descriptors keyed by content hash.
// Upsert semantics: bytes identik = baris yang sama.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]*domain.Document)}
}

// Save insert/update descriptor
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	r.docs[d.TenantID+"/"+string(d.ID)] = &c
	return nil
}

// Get by content hash + tenant
func (r *DocumentRepository) Get(ctx context.Context, tenant string, id domain.DocumentID) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[tenant+"/"+string(id)]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	c := *d
	return &c, nil
}

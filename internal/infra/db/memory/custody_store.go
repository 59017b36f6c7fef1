package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/custody"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// CustodyStore keeps hash-chained ledger entries in memory, append-only.
type CustodyStore struct {
	mu     sync.RWMutex
	chains map[string][]*domain.Entry // key: tenant/documentID
}

func NewCustodyStore() *CustodyStore {
	return &CustodyStore{chains: make(map[string][]*domain.Entry)}
}

func chainKey(tenant string, doc documents.DocumentID) string {
	return tenant + "/" + string(doc)
}

// Append adds the next entry; seq harus persis head+1
func (s *CustodyStore) Append(ctx context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chainKey(e.TenantID, e.DocumentID)
	chain := s.chains[key]
	if want := int64(len(chain)) + 1; e.Seq != want {
		return fmt.Errorf("custody append: seq %d out of order, want %d", e.Seq, want)
	}
	c := *e
	s.chains[key] = append(chain, &c)
	return nil
}

// List returns the full chain in seq order
func (s *CustodyStore) List(ctx context.Context, tenant string, doc documents.DocumentID) ([]*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[chainKey(tenant, doc)]
	out := make([]*domain.Entry, 0, len(chain))
	for _, e := range chain {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// Head returns last seq + hash, or (0, ZeroHash) for an empty chain
func (s *CustodyStore) Head(ctx context.Context, tenant string, doc documents.DocumentID) (int64, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[chainKey(tenant, doc)]
	if len(chain) == 0 {
		return 0, domain.ZeroHash, nil
	}
	last := chain[len(chain)-1]
	return last.Seq, last.Hash, nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analyst"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

// AnalystRepository stores AI examiner narratives in memory.
type AnalystRepository struct {
	mu   sync.RWMutex
	rows map[string][]*domain.Examination // key: tenant
}

func NewAnalystRepository() *AnalystRepository {
	return &AnalystRepository{rows: make(map[string][]*domain.Examination)}
}

// Save appends an examination
func (r *AnalystRepository) Save(ctx context.Context, a *domain.Examination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *a
	r.rows[a.TenantID] = append(r.rows[a.TenantID], &c)
	return nil
}

// Paginate newest first
func (r *AnalystRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Examination, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := append([]*domain.Examination(nil), r.rows[tenant]...)
	sort.Slice(list, func(a, b int) bool { return list[a].CreatedAt.After(list[b].CreatedAt) })
	start := (page - 1) * pageSize
	if start >= len(list) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	out := make([]*domain.Examination, 0, end-start)
	for _, a := range list[start:end] {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

// LatestByJob returns the newest examination for one job
func (r *AnalystRepository) LatestByJob(ctx context.Context, tenant string, jobID string) (*domain.Examination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *domain.Examination
	for _, a := range r.rows[tenant] {
		if a.JobID != jobID {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return nil, jobs.ErrNotFound
	}
	c := *best
	return &c, nil
}

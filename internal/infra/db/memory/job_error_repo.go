package memory

import (
	"context"
	"sync"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/joberrors"
)

// JobErrorRepository keeps the recoverable-error journal in memory.
type JobErrorRepository struct {
	mu     sync.Mutex
	nextID int64
	byJob  map[string][]*domain.JobError // key: tenant/jobID
}

func NewJobErrorRepository() *JobErrorRepository {
	return &JobErrorRepository{byJob: make(map[string][]*domain.JobError)}
}

// Save appends one journal row, assigning the id
func (r *JobErrorRepository) Save(ctx context.Context, e *domain.JobError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := *e
	c.ID = r.nextID
	key := e.TenantID + "/" + e.JobID
	r.byJob[key] = append(r.byJob[key], &c)
	return nil
}

// ListByJob returns journal rows for one job, oldest first
func (r *JobErrorRepository) ListByJob(ctx context.Context, tenant string, jobID string, limit int) ([]*domain.JobError, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.byJob[tenant+"/"+jobID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]*domain.JobError, 0, len(rows))
	for _, e := range rows {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

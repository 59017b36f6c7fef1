package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

// JobRepository keeps jobs and batches in process memory.
// Dipakai untuk driver "memory" dan untuk test.
type JobRepository struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.AnalysisJob
	batches map[string]*domain.BatchJob
}

func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs:    make(map[string]*domain.AnalysisJob),
		batches: make(map[string]*domain.BatchJob),
	}
}

func jobKey(tenant string, id domain.JobID) string {
	return tenant + "/" + string(id)
}

func copyJob(j *domain.AnalysisJob) *domain.AnalysisJob {
	c := *j
	if j.Errors != nil {
		c.Errors = append([]domain.ErrorRecord(nil), j.Errors...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Save insert/update job record
func (r *JobRepository) Save(ctx context.Context, j *domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[jobKey(j.TenantID, j.ID)] = copyJob(j)
	return nil
}

// Get by ID + Tenant
func (r *JobRepository) Get(ctx context.Context, tenant string, id domain.JobID) (*domain.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobKey(tenant, id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

// UpdateProgress update kolom state + progress; started_at diisi sekali
func (r *JobRepository) UpdateProgress(ctx context.Context, tenant string, id domain.JobID, state domain.State, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey(tenant, id)]
	if !ok {
		return domain.ErrNotFound
	}
	j.State = state
	j.Progress = progress
	if j.StartedAt == nil {
		now := time.Now().UTC()
		j.StartedAt = &now
	}
	return nil
}

// Finish hanya menulis kolom terminal; kolom lain pada row tidak disentuh.
func (r *JobRepository) Finish(ctx context.Context, tenant string, j *domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[jobKey(tenant, j.ID)]
	if !ok {
		return nil
	}
	cur.State = j.State
	cur.Progress = j.Progress
	cur.ErrorCode = j.ErrorCode
	cur.ErrorMessage = j.ErrorMessage
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cur.FinishedAt = &t
	} else {
		cur.FinishedAt = nil
	}
	return nil
}

// SaveBatch insert/update batch record
func (r *JobRepository) SaveBatch(ctx context.Context, b *domain.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *b
	c.JobIDs = append([]domain.JobID(nil), b.JobIDs...)
	r.batches[b.TenantID+"/"+string(b.ID)] = &c
	return nil
}

// GetBatch by ID + Tenant
func (r *JobRepository) GetBatch(ctx context.Context, tenant string, id domain.BatchID) (*domain.BatchJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[tenant+"/"+string(id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *b
	c.JobIDs = append([]domain.JobID(nil), b.JobIDs...)
	return &c, nil
}

// ListByBatch returns every job in the batch, enqueue order
func (r *JobRepository) ListByBatch(ctx context.Context, tenant string, id domain.BatchID) ([]*domain.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.AnalysisJob
	for _, j := range r.jobs {
		if j.TenantID == tenant && j.BatchID == id {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].EnqueuedAt.Before(out[b].EnqueuedAt) })
	return out, nil
}

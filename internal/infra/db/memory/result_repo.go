package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

// ResultRepository stores immutable analysis results per tenant.
type ResultRepository struct {
	mu      sync.RWMutex
	results map[string][]*domain.AnalysisResult // key: tenant
	byJob   map[string]*domain.AnalysisResult   // key: tenant/jobID
}

func NewResultRepository() *ResultRepository {
	return &ResultRepository{
		results: make(map[string][]*domain.AnalysisResult),
		byJob:   make(map[string]*domain.AnalysisResult),
	}
}

func copyResult(r *domain.AnalysisResult) *domain.AnalysisResult {
	c := *r
	if r.Indicators != nil {
		c.Indicators = append([]domain.Indicator(nil), r.Indicators...)
	}
	return &c
}

// Save appends a result; results are never updated in place
func (r *ResultRepository) Save(ctx context.Context, res *domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := copyResult(res)
	key := res.TenantID + "/" + res.JobID
	if _, ok := r.byJob[key]; !ok {
		r.results[res.TenantID] = append(r.results[res.TenantID], c)
	}
	r.byJob[key] = c
	return nil
}

// GetByJob fetch result milik satu job
func (r *ResultRepository) GetByJob(ctx context.Context, tenant, jobID string) (*domain.AnalysisResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byJob[tenant+"/"+jobID]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return copyResult(res), nil
}

func (r *ResultRepository) sortedDesc(tenant string) []*domain.AnalysisResult {
	list := append([]*domain.AnalysisResult(nil), r.results[tenant]...)
	sort.Slice(list, func(a, b int) bool {
		if !list[a].CompletedAt.Equal(list[b].CompletedAt) {
			return list[a].CompletedAt.After(list[b].CompletedAt)
		}
		return list[a].JobID > list[b].JobID
	})
	return list
}

// Latest results per tenant
func (r *ResultRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.AnalysisResult, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.sortedDesc(tenant)
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.AnalysisResult, 0, len(list))
	for _, res := range list {
		out = append(out, copyResult(res))
	}
	return out, nil
}

// Summary counts indicators by risk bucket since N days
func (r *ResultRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.IndicatorCounts, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var counts domain.IndicatorCounts
	for _, res := range r.results[tenant] {
		if res.CompletedAt.Before(cut) {
			continue
		}
		counts.Total++
		switch res.Risk {
		case domain.RiskCritical:
			counts.Critical++
		case domain.RiskHigh:
			counts.High++
		case domain.RiskMedium:
			counts.Medium++
		case domain.RiskLow:
			counts.Low++
		}
	}
	return counts, nil
}

// Paginate with page + pageSize (classic pagination)
func (r *ResultRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.AnalysisResult, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.sortedDesc(tenant)
	total := int64(len(list))
	start := (page - 1) * pageSize
	if start >= len(list) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	out := make([]*domain.AnalysisResult, 0, end-start)
	for _, res := range list[start:end] {
		out = append(out, copyResult(res))
	}
	return out, total, nil
}

// Cursor-based pagination (after cursorTime, cursorJobID)
func (r *ResultRepository) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorJobID string, pageSize int) ([]*domain.AnalysisResult, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.AnalysisResult
	for _, res := range r.sortedDesc(tenant) {
		if res.CompletedAt.After(cursorTime) {
			continue
		}
		if res.CompletedAt.Equal(cursorTime) && res.JobID >= cursorJobID {
			continue
		}
		out = append(out, copyResult(res))
		if len(out) == pageSize {
			break
		}
	}
	return out, nil
}

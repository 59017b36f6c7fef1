package analyst

import "context"

// Repository port for persisting and querying examinations
type Repository interface {
	Save(ctx context.Context, a *Examination) error
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Examination, error)
	LatestByJob(ctx context.Context, tenant string, jobID string) (*Examination, error)
}

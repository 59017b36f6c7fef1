package joberrors

import (
	"context"
)

// Repository defines persistence for job errors
type Repository interface {
	Save(ctx context.Context, e *JobError) error
	ListByJob(ctx context.Context, tenant string, jobID string, limit int) ([]*JobError, error)
}

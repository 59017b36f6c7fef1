package jobs

import (
	"context"
	"errors"
)

// ErrNotReady: job masih jalan, result belum ada
var ErrNotReady = errors.New("analysis result not ready")

// ErrNotFound dipakai repo memory; repo sql pakai sql.ErrNoRows
var ErrNotFound = errors.New("not found")

// ErrAlreadyTerminal: job sudah selesai, tidak bisa di-cancel
var ErrAlreadyTerminal = errors.New("job already terminal")

// Repository port (interface untuk persistence job + batch)
type Repository interface {
	Save(ctx context.Context, j *AnalysisJob) error
	Get(ctx context.Context, tenant string, id JobID) (*AnalysisJob, error)
	UpdateProgress(ctx context.Context, tenant string, id JobID, state State, progress int) error
	Finish(ctx context.Context, tenant string, j *AnalysisJob) error

	SaveBatch(ctx context.Context, b *BatchJob) error
	GetBatch(ctx context.Context, tenant string, id BatchID) (*BatchJob, error)
	ListByBatch(ctx context.Context, tenant string, id BatchID) ([]*AnalysisJob, error)
}

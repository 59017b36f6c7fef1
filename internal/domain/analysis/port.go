package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

var (
	// ErrUnsupportedFormat: tidak ada detector family untuk format ini.
	// Terminal, tidak di-retry.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrCorruptDocument: isi tidak bisa dibaca parser wajib format itu
	ErrCorruptDocument = errors.New("corrupt document content")
	// ErrFatalAnalysis: semua detector gagal untuk satu dokumen
	ErrFatalAnalysis = errors.New("fatal analysis error: all detectors failed")
)

// Detector port: satu capability per family check.
// Analyze tidak boleh mutate content; ctx membawa timeout per invokasi.
type Detector interface {
	Name() string
	Analyze(ctx context.Context, content []byte) ([]Indicator, error)
}

// Registry port: format -> detector set terurut, dibangun sekali saat start
type Registry interface {
	DetectorsFor(format documents.Format) ([]Detector, error)
	Supported(format documents.Format) bool
}

// Repository port untuk AnalysisResult (immutable rows)
type Repository interface {
	Save(ctx context.Context, r *AnalysisResult) error
	GetByJob(ctx context.Context, tenant, jobID string) (*AnalysisResult, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*AnalysisResult, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (IndicatorCounts, error)

	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*AnalysisResult, int64, error)
	Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorJobID string, pageSize int) ([]*AnalysisResult, error)
}

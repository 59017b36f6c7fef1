package jobs

import (
	"time"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// ID tipe untuk AnalysisJob dan BatchJob
type JobID string
type BatchID string

// State enum, transisi satu arah
type State string

const (
	StateQueued             State = "QUEUED"
	StateExtractingMetadata State = "EXTRACTING_METADATA"
	StateDetecting          State = "DETECTING"
	StateScoring            State = "SCORING"
	StateCompleted          State = "COMPLETED"
	StateFailed             State = "FAILED"
	StateCancelled          State = "CANCELLED"
)

// Terminal: job selesai, tidak di-recycle
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var forward = map[State]State{
	StateQueued:             StateExtractingMetadata,
	StateExtractingMetadata: StateDetecting,
	StateDetecting:          StateScoring,
	StateScoring:            StateCompleted,
}

// CanTransition: maju satu stage, atau FAILED/CANCELLED dari state non-terminal.
// Tidak ada state yang dikunjungi dua kali.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed || to == StateCancelled {
		return true
	}
	return forward[from] == to
}

// StageProgress: checkpoint progress saat MASUK state.
// Lebar stage 10/40/40/10 (metadata/detecting/scoring/finalisasi).
func StageProgress(s State) int {
	switch s {
	case StateQueued:
		return 0
	case StateExtractingMetadata:
		return 10
	case StateDetecting:
		return 50
	case StateScoring:
		return 90
	case StateCompleted:
		return 100
	default:
		return 0
	}
}

// ErrorRecord catatan error recoverable selama job jalan
type ErrorRecord struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Aggregate Root: AnalysisJob. State hanya dimutasi orchestrator.
type AnalysisJob struct {
	ID           JobID                `json:"id"`
	BatchID      BatchID              `json:"batch_id,omitempty"`
	TenantID     string               `json:"tenant_id"`
	DocumentID   documents.DocumentID `json:"document_id"`
	Format       documents.Format     `json:"format"`
	State        State                `json:"state"`
	Progress     int                  `json:"progress"`
	ErrorCode    string               `json:"error_code,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Errors       []ErrorRecord        `json:"errors,omitempty"`
	EnqueuedAt   time.Time            `json:"enqueued_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
}

// BatchJob cuma pegang referensi id job, bukan ownership
type BatchJob struct {
	ID          BatchID   `json:"id"`
	TenantID    string    `json:"tenant_id"`
	JobIDs      []JobID   `json:"job_ids"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BatchStatus view turunan dari state job, tidak pernah disimpan
type BatchStatus struct {
	BatchID   BatchID `json:"batch_id"`
	Queued    int     `json:"queued"`
	Running   int     `json:"running"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Cancelled int     `json:"cancelled"`
	Total     int     `json:"total"`
}

// ComputeBatchStatus hitung ulang counts dari state job supaya tidak drift
func ComputeBatchStatus(id BatchID, list []*AnalysisJob) BatchStatus {
	st := BatchStatus{BatchID: id, Total: len(list)}
	for _, j := range list {
		switch j.State {
		case StateQueued:
			st.Queued++
		case StateCompleted:
			st.Completed++
		case StateFailed:
			st.Failed++
		case StateCancelled:
			st.Cancelled++
		default:
			st.Running++
		}
	}
	return st
}

package analyst

import "time"

// ExaminationID identifier type
type ExaminationID string

// Examination represents an AI examiner narrative stored for auditing and retrieval
type Examination struct {
	ID         ExaminationID `json:"id"`
	TenantID   string        `json:"tenant_id"`
	JobID      string        `json:"job_id,omitempty"`
	DocumentID string        `json:"document_id"`
	Result     string        `json:"result"` // JSON string from AI
	CreatedAt  time.Time     `json:"created_at"`
}

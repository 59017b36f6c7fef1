package joberrors

import "time"

// JobError represents a persisted recoverable error entry for a job
type JobError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	JobID       string    `json:"job_id"`
	Detector    string    `json:"detector,omitempty"`
	Phase       string    `json:"phase,omitempty"` // fetch | detect | score | other
	Code        string    `json:"code,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}

package ai

import (
	"context"

	"github.com/google/uuid"

	"github.com/bryanwahyu/automaton-forensics/internal/application"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/ai"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/analyst"
)

type Service struct {
	client ai.Client
	repo   analyst.Repository
	clock  application.Clock
}

func NewService(client ai.Client, repo analyst.Repository, clock application.Clock) *Service {
	return &Service{client: client, repo: repo, clock: clock}
}

// Examine runs the examiner without persisting anything
func (s *Service) Examine(ctx context.Context, findings string) (string, error) {
	return s.client.Examine(ctx, findings)
}

// ExamineAndStore runs the examiner on serialized findings and keeps
// the narrative for auditing
func (s *Service) ExamineAndStore(ctx context.Context, tenant, jobID, documentID, findings string) (*analyst.Examination, error) {
	result, err := s.client.Examine(ctx, findings)
	if err != nil {
		return nil, err
	}

	exam := &analyst.Examination{
		ID:         analyst.ExaminationID(uuid.New().String()),
		TenantID:   tenant,
		JobID:      jobID,
		DocumentID: documentID,
		Result:     result,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Save(ctx, exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// ListExaminations page of stored narratives, newest first
func (s *Service) ListExaminations(ctx context.Context, tenant string, page, pageSize int) ([]*analyst.Examination, error) {
	return s.repo.Paginate(ctx, tenant, page, pageSize)
}

// LatestForJob newest narrative milik satu job
func (s *Service) LatestForJob(ctx context.Context, tenant, jobID string) (*analyst.Examination, error) {
	return s.repo.LatestByJob(ctx, tenant, jobID)
}

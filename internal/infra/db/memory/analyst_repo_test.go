package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analyst"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

func mkExam(id, jobID string, at time.Time) *domain.Examination {
	return &domain.Examination{
		ID:         domain.ExaminationID(id),
		TenantID:   "acme",
		JobID:      jobID,
		DocumentID: "doc-1",
		Result:     `{"verdict":"suspicious"}`,
		CreatedAt:  at,
	}
}

func TestAnalystRepository_PaginateNewestFirst(t *testing.T) {
	repo := NewAnalystRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 13, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, mkExam("e2", "j2", t0.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, mkExam("e1", "j1", t0)))
	require.NoError(t, repo.Save(ctx, mkExam("e3", "j3", t0.Add(2*time.Hour))))

	page1, err := repo.Paginate(ctx, "acme", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, domain.ExaminationID("e3"), page1[0].ID)
	assert.Equal(t, domain.ExaminationID("e2"), page1[1].ID)

	page2, err := repo.Paginate(ctx, "acme", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, domain.ExaminationID("e1"), page2[0].ID)

	page3, err := repo.Paginate(ctx, "acme", 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page3)
}

func TestAnalystRepository_LatestByJob(t *testing.T) {
	repo := NewAnalystRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 13, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, mkExam("e1", "j1", t0)))
	require.NoError(t, repo.Save(ctx, mkExam("e2", "j1", t0.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, mkExam("e3", "j2", t0.Add(time.Hour))))

	got, err := repo.LatestByJob(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExaminationID("e2"), got.ID)

	_, err = repo.LatestByJob(ctx, "acme", "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

func mkResult(tenant, jobID string, risk domain.RiskLevel, at time.Time) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		JobID:       jobID,
		TenantID:    tenant,
		DocumentID:  documents.DocumentID("doc-" + jobID),
		Format:      documents.FormatText,
		Indicators:  []domain.Indicator{{Kind: domain.KindHomoglyph, Confidence: 0.8}},
		Confidence:  0.8,
		Risk:        risk,
		CompletedAt: at,
	}
}

func TestResultRepository_SaveAndGetByJob(t *testing.T) {
	repo := NewResultRepository()
	ctx := context.Background()
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, mkResult("acme", "j1", domain.RiskHigh, at)))

	got, err := repo.GetByJob(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, got.Risk)
	require.Len(t, got.Indicators, 1)

	// hasil Get adalah copy
	got.Indicators[0].Confidence = 0
	again, err := repo.GetByJob(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, again.Indicators[0].Confidence, 1e-9)

	_, err = repo.GetByJob(ctx, "acme", "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = repo.GetByJob(ctx, "other", "j1")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestResultRepository_ResaveSameJobKeepsSingleRow(t *testing.T) {
	repo := NewResultRepository()
	ctx := context.Background()
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, mkResult("acme", "j1", domain.RiskLow, at)))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j1", domain.RiskCritical, at.Add(time.Minute))))

	got, err := repo.GetByJob(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskCritical, got.Risk)

	list, err := repo.Latest(ctx, "acme", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestResultRepository_LatestNewestFirst(t *testing.T) {
	repo := NewResultRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	// insert acak, baca harus terurut CompletedAt desc
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j2", domain.RiskMedium, t0.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j1", domain.RiskLow, t0)))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j3", domain.RiskHigh, t0.Add(2*time.Hour))))

	list, err := repo.Latest(ctx, "acme", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "j3", list[0].JobID)
	assert.Equal(t, "j2", list[1].JobID)

	all, err := repo.Latest(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestResultRepository_PaginateOffsets(t *testing.T) {
	repo := NewResultRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		res := mkResult("acme", string(rune('a'+i)), domain.RiskLow, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Save(ctx, res))
	}

	page1, total, err := repo.Paginate(ctx, "acme", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "e", page1[0].JobID)

	page3, total, err := repo.Paginate(ctx, "acme", 3, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page3, 1)
	assert.Equal(t, "a", page3[0].JobID)

	page4, total, err := repo.Paginate(ctx, "acme", 4, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Empty(t, page4)
}

func TestResultRepository_CursorWalksWithoutDuplicates(t *testing.T) {
	repo := NewResultRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	// dua baris pertama share timestamp, tie-break pakai job id
	require.NoError(t, repo.Save(ctx, mkResult("acme", "a", domain.RiskLow, t0.Add(2*time.Hour))))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "b", domain.RiskLow, t0.Add(2*time.Hour))))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "c", domain.RiskLow, t0.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "d", domain.RiskLow, t0)))

	var seen []string
	cursorTime := t0.Add(24 * time.Hour)
	cursorJob := ""
	for {
		page, err := repo.Cursor(ctx, "acme", cursorTime, cursorJob, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, res := range page {
			seen = append(seen, res.JobID)
		}
		last := page[len(page)-1]
		cursorTime = last.CompletedAt
		cursorJob = last.JobID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, seen)
}

func TestResultRepository_SummaryBucketsByRisk(t *testing.T) {
	repo := NewResultRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, mkResult("acme", "j1", domain.RiskCritical, now)))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j2", domain.RiskHigh, now.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j3", domain.RiskMedium, now.AddDate(0, 0, -2))))
	// di luar window 7 hari
	require.NoError(t, repo.Save(ctx, mkResult("acme", "j4", domain.RiskLow, now.AddDate(0, 0, -10))))

	counts, err := repo.Summary(ctx, "acme", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 1, counts.Critical)
	assert.Equal(t, 1, counts.High)
	assert.Equal(t, 1, counts.Medium)
	assert.Equal(t, 0, counts.Low)
}

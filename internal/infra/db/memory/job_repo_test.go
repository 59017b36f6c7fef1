package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

func mkJob(tenant, id string, state jobs.State, enqueued time.Time) *jobs.AnalysisJob {
	return &jobs.AnalysisJob{
		ID:         jobs.JobID(id),
		TenantID:   tenant,
		DocumentID: documents.DocumentID("doc-" + id),
		Format:     documents.FormatText,
		State:      state,
		Progress:   jobs.StageProgress(state),
		EnqueuedAt: enqueued,
	}
}

func TestJobRepository_SaveAndGetAreIsolatedCopies(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)

	orig := mkJob("acme", "j1", jobs.StateQueued, t0)
	require.NoError(t, repo.Save(ctx, orig))

	// mutasi setelah Save tidak boleh bocor ke repo
	orig.State = jobs.StateFailed
	orig.Errors = append(orig.Errors, jobs.ErrorRecord{Code: "X"})

	got, err := repo.Get(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateQueued, got.State)
	assert.Empty(t, got.Errors)

	// mutasi hasil Get juga tidak boleh bocor
	got.Progress = 99
	again, err := repo.Get(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Progress)
}

func TestJobRepository_GetScopedByTenant(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, mkJob("acme", "j1", jobs.StateQueued, time.Now())))

	_, err := repo.Get(ctx, "other", "j1")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = repo.Get(ctx, "acme", "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestJobRepository_UpdateProgress(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, mkJob("acme", "j1", jobs.StateQueued, time.Now())))
	require.NoError(t, repo.UpdateProgress(ctx, "acme", "j1", jobs.StateDetecting, 50))

	got, err := repo.Get(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateDetecting, got.State)
	assert.Equal(t, 50, got.Progress)

	err = repo.UpdateProgress(ctx, "acme", "missing", jobs.StateDetecting, 50)
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestJobRepository_FinishKeepsNonTerminalColumns(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	t0 := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, mkJob("acme", "j1", jobs.StateQueued, t0)))

	// terminal write pakai struct tipis, seperti worker yang gagal load row-nya
	finished := time.Now()
	stub := &jobs.AnalysisJob{
		ID:           "j1",
		TenantID:     "acme",
		State:        jobs.StateFailed,
		Progress:     100,
		ErrorCode:    "TransientIOError",
		ErrorMessage: "store offline",
		FinishedAt:   &finished,
	}
	require.NoError(t, repo.Finish(ctx, "acme", stub))

	got, err := repo.Get(ctx, "acme", "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, got.State)
	assert.Equal(t, "TransientIOError", got.ErrorCode)
	assert.Equal(t, "store offline", got.ErrorMessage)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(finished))

	// kolom non-terminal tetap dari row lama
	assert.Equal(t, documents.DocumentID("doc-j1"), got.DocumentID)
	assert.Equal(t, documents.FormatText, got.Format)
	assert.True(t, got.EnqueuedAt.Equal(t0))

	// row yang tidak ada: no-op, sama seperti UPDATE kena 0 rows
	require.NoError(t, repo.Finish(ctx, "acme", &jobs.AnalysisJob{ID: "missing", TenantID: "acme"}))
	_, err = repo.Get(ctx, "acme", "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestJobRepository_BatchRoundtrip(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()

	batch := &jobs.BatchJob{
		ID:          "b1",
		TenantID:    "acme",
		JobIDs:      []jobs.JobID{"j1", "j2"},
		SubmittedAt: time.Now(),
	}
	require.NoError(t, repo.SaveBatch(ctx, batch))

	got, err := repo.GetBatch(ctx, "acme", "b1")
	require.NoError(t, err)
	assert.Equal(t, []jobs.JobID{"j1", "j2"}, got.JobIDs)

	got.JobIDs[0] = "tampered"
	again, err := repo.GetBatch(ctx, "acme", "b1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobID("j1"), again.JobIDs[0])

	_, err = repo.GetBatch(ctx, "acme", "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = repo.GetBatch(ctx, "other", "b1")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestJobRepository_ListByBatchEnqueueOrder(t *testing.T) {
	repo := NewJobRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)

	// insert tidak urut waktu
	second := mkJob("acme", "j2", jobs.StateQueued, t0.Add(time.Second))
	second.BatchID = "b1"
	first := mkJob("acme", "j1", jobs.StateCompleted, t0)
	first.BatchID = "b1"
	third := mkJob("acme", "j3", jobs.StateQueued, t0.Add(2*time.Second))
	third.BatchID = "b1"
	stray := mkJob("acme", "j9", jobs.StateQueued, t0)
	otherTenant := mkJob("other", "j1", jobs.StateQueued, t0)
	otherTenant.BatchID = "b1"

	for _, j := range []*jobs.AnalysisJob{second, first, third, stray, otherTenant} {
		require.NoError(t, repo.Save(ctx, j))
	}

	list, err := repo.ListByBatch(ctx, "acme", "b1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, jobs.JobID("j1"), list[0].ID)
	assert.Equal(t, jobs.JobID("j2"), list[1].ID)
	assert.Equal(t, jobs.JobID("j3"), list[2].ID)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/joberrors"
)

func TestJobErrorRepository_AssignsIDsOldestFirst(t *testing.T) {
	repo := NewJobErrorRepository()
	ctx := context.Background()
	t0 := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)

	for i, code := range []string{"TransientIOError", "detector-timeout", "TransientIOError"} {
		require.NoError(t, repo.Save(ctx, &domain.JobError{
			TenantID:  "acme",
			JobID:     "j1",
			Phase:     "fetch",
			Code:      code,
			Message:   "attempt failed",
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	rows, err := repo.ListByJob(ctx, "acme", "j1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.EqualValues(t, 1, rows[0].ID)
	assert.EqualValues(t, 3, rows[2].ID)
	assert.Equal(t, "detector-timeout", rows[1].Code)

	capped, err := repo.ListByJob(ctx, "acme", "j1", 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	assert.EqualValues(t, 1, capped[0].ID)

	other, err := repo.ListByJob(ctx, "acme", "other-job", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

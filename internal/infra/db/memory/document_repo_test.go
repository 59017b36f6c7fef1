package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

func TestDocumentRepository_UpsertByContentHash(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()

	doc := &domain.Document{
		ID:             "hash-1",
		TenantID:       "acme",
		Name:           "invoice.txt",
		DeclaredFormat: domain.FormatText,
		SizeBytes:      42,
		IngestedAt:     time.Now(),
	}
	require.NoError(t, repo.Save(ctx, doc))

	// submit ulang bytes identik menimpa descriptor lama
	doc.Name = "invoice-resubmitted.txt"
	require.NoError(t, repo.Save(ctx, doc))

	got, err := repo.Get(ctx, "acme", "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "invoice-resubmitted.txt", got.Name)

	got.Name = "mutated"
	again, err := repo.Get(ctx, "acme", "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "invoice-resubmitted.txt", again.Name)

	_, err = repo.Get(ctx, "other", "hash-1")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, err = repo.Get(ctx, "acme", "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

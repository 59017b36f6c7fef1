package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-forensics/internal/domain/custody"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

const custodyDoc = documents.DocumentID("doc-1")

func mkEntry(seq int64, prev string) *domain.Entry {
	e := &domain.Entry{
		Seq:        seq,
		TenantID:   "acme",
		DocumentID: custodyDoc,
		Actor:      domain.ActorOrchestrator,
		Action:     "state DETECTING",
		At:         time.Date(2026, time.March, 5, 11, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
		PrevHash:   prev,
	}
	e.Hash = domain.ComputeHash(prev, e)
	return e
}

func TestCustodyStore_AppendEnforcesSeq(t *testing.T) {
	store := NewCustodyStore()
	ctx := context.Background()

	e1 := mkEntry(1, domain.ZeroHash)
	require.NoError(t, store.Append(ctx, e1))

	// lompat seq ditolak
	err := store.Append(ctx, mkEntry(3, e1.Hash))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")

	e2 := mkEntry(2, e1.Hash)
	require.NoError(t, store.Append(ctx, e2))

	// duplikat seq juga ditolak
	assert.Error(t, store.Append(ctx, mkEntry(2, e1.Hash)))
}

func TestCustodyStore_HeadFollowsChain(t *testing.T) {
	store := NewCustodyStore()
	ctx := context.Background()

	seq, hash, err := store.Head(ctx, "acme", custodyDoc)
	require.NoError(t, err)
	assert.EqualValues(t, 0, seq)
	assert.Equal(t, domain.ZeroHash, hash)

	e1 := mkEntry(1, domain.ZeroHash)
	e2 := mkEntry(2, e1.Hash)
	require.NoError(t, store.Append(ctx, e1))
	require.NoError(t, store.Append(ctx, e2))

	seq, hash, err = store.Head(ctx, "acme", custodyDoc)
	require.NoError(t, err)
	assert.EqualValues(t, 2, seq)
	assert.Equal(t, e2.Hash, hash)
}

func TestCustodyStore_ListReturnsIsolatedCopies(t *testing.T) {
	store := NewCustodyStore()
	ctx := context.Background()

	e1 := mkEntry(1, domain.ZeroHash)
	require.NoError(t, store.Append(ctx, e1))

	list, err := store.List(ctx, "acme", custodyDoc)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list[0].Action = "tampered"
	again, err := store.List(ctx, "acme", custodyDoc)
	require.NoError(t, err)
	assert.Equal(t, "state DETECTING", again[0].Action)

	// chain per tenant/dokumen terpisah
	other, err := store.List(ctx, "other", custodyDoc)
	require.NoError(t, err)
	assert.Empty(t, other)
}

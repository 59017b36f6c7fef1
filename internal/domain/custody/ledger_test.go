package custody

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// fakeStore in-memory Store tanpa proteksi, biar test bisa tamper langsung
type fakeStore struct {
	chains map[string][]*Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{chains: map[string][]*Entry{}}
}

func (s *fakeStore) key(tenant string, doc documents.DocumentID) string {
	return tenant + "/" + string(doc)
}

func (s *fakeStore) Append(ctx context.Context, e *Entry) error {
	k := s.key(e.TenantID, e.DocumentID)
	s.chains[k] = append(s.chains[k], e)
	return nil
}

func (s *fakeStore) List(ctx context.Context, tenant string, doc documents.DocumentID) ([]*Entry, error) {
	return s.chains[s.key(tenant, doc)], nil
}

func (s *fakeStore) Head(ctx context.Context, tenant string, doc documents.DocumentID) (int64, string, error) {
	chain := s.chains[s.key(tenant, doc)]
	if len(chain) == 0 {
		return 0, ZeroHash, nil
	}
	last := chain[len(chain)-1]
	return last.Seq, last.Hash, nil
}

func testLedger() (*Ledger, *fakeStore) {
	store := newFakeStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	l := NewLedger(store).WithClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	})
	return l, store
}

func TestLedger_AppendBuildsChain(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()
	doc := documents.DocumentID("doc-1")

	e1, err := l.Append(ctx, "acme", doc, ActorAPI, "ingested")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, ZeroHash, e1.PrevHash)
	assert.NotEmpty(t, e1.Hash)

	e2, err := l.Append(ctx, "acme", doc, ActorOrchestrator, "state DETECTING")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.Seq)
	assert.Equal(t, e1.Hash, e2.PrevHash)

	e3, err := l.Append(ctx, "acme", doc, "detector:text/homoglyph", "detector ok")
	require.NoError(t, err)
	assert.Equal(t, int64(3), e3.Seq)
	assert.Equal(t, e2.Hash, e3.PrevHash)

	rep, err := l.Verify(ctx, "acme", doc)
	require.NoError(t, err)
	assert.True(t, rep.Valid)
	assert.Equal(t, 3, rep.Entries)
	assert.Zero(t, rep.TamperedSeq)
}

func TestLedger_VerifyEmptyChain(t *testing.T) {
	l, _ := testLedger()
	rep, err := l.Verify(context.Background(), "acme", "ghost")
	require.NoError(t, err)
	assert.True(t, rep.Valid)
	assert.Zero(t, rep.Entries)
}

func TestLedger_DetectsTamperedEntry(t *testing.T) {
	l, store := testLedger()
	ctx := context.Background()
	doc := documents.DocumentID("doc-1")

	for i := 0; i < 8; i++ {
		_, err := l.Append(ctx, "acme", doc, ActorOrchestrator, fmt.Sprintf("step %d", i))
		require.NoError(t, err)
	}

	// ubah isi entry kelima tanpa update hash
	store.chains["acme/doc-1"][4].Action = "step 4 (rewritten)"

	rep, err := l.Verify(ctx, "acme", doc)
	require.NoError(t, err)
	assert.False(t, rep.Valid)
	assert.Equal(t, int64(5), rep.TamperedSeq)
}

func TestLedger_DetectsBrokenLink(t *testing.T) {
	l, store := testLedger()
	ctx := context.Background()
	doc := documents.DocumentID("doc-1")

	for i := 0; i < 4; i++ {
		_, err := l.Append(ctx, "acme", doc, ActorOrchestrator, fmt.Sprintf("step %d", i))
		require.NoError(t, err)
	}

	// entri dihapus di tengah: seq jadi bolong
	chain := store.chains["acme/doc-1"]
	store.chains["acme/doc-1"] = append(chain[:1], chain[2:]...)

	rep, err := l.Verify(ctx, "acme", doc)
	require.NoError(t, err)
	assert.False(t, rep.Valid)
	assert.Equal(t, int64(2), rep.TamperedSeq)
}

func TestLedger_ChainsIsolatedPerDocument(t *testing.T) {
	l, _ := testLedger()
	ctx := context.Background()

	a1, err := l.Append(ctx, "acme", "doc-a", ActorAPI, "ingested")
	require.NoError(t, err)
	b1, err := l.Append(ctx, "acme", "doc-b", ActorAPI, "ingested")
	require.NoError(t, err)

	// dua chain mulai dari genesis masing-masing
	assert.Equal(t, int64(1), a1.Seq)
	assert.Equal(t, int64(1), b1.Seq)
	assert.Equal(t, ZeroHash, a1.PrevHash)
	assert.Equal(t, ZeroHash, b1.PrevHash)
	assert.NotEqual(t, a1.Hash, b1.Hash)

	// tenant lain juga terpisah walau document id sama
	o1, err := l.Append(ctx, "other", "doc-a", ActorAPI, "ingested")
	require.NoError(t, err)
	assert.Equal(t, int64(1), o1.Seq)
}

func TestComputeHash_SensitiveToEveryField(t *testing.T) {
	base := Entry{
		Seq:        1,
		TenantID:   "acme",
		DocumentID: "doc",
		Actor:      ActorAPI,
		Action:     "ingested",
		At:         time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	h := ComputeHash(ZeroHash, &base)

	mutations := []func(e *Entry){
		func(e *Entry) { e.Seq = 2 },
		func(e *Entry) { e.TenantID = "acmf" },
		func(e *Entry) { e.DocumentID = "doc2" },
		func(e *Entry) { e.Actor = ActorOrchestrator },
		func(e *Entry) { e.Action = "ingested!" },
		func(e *Entry) { e.At = e.At.Add(time.Nanosecond) },
	}
	for i, mutate := range mutations {
		e := base
		mutate(&e)
		assert.NotEqualf(t, h, ComputeHash(ZeroHash, &e), "mutation %d should change hash", i)
	}

	assert.NotEqual(t, h, ComputeHash("ab", &base))
}

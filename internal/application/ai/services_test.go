package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appai "github.com/bryanwahyu/automaton-forensics/internal/application/ai"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
	memorydb "github.com/bryanwahyu/automaton-forensics/internal/infra/db/memory"
)

type stubClient struct {
	out   string
	err   error
	calls []string
}

func (c *stubClient) Examine(_ context.Context, findings string) (string, error) {
	c.calls = append(c.calls, findings)
	if c.err != nil {
		return "", c.err
	}
	return c.out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestExamineAndStore_PersistsNarrative(t *testing.T) {
	now := time.Date(2026, time.March, 5, 14, 0, 0, 0, time.UTC)
	client := &stubClient{out: `{"verdict":"tampered-likely"}`}
	repo := memorydb.NewAnalystRepository()
	svc := appai.NewService(client, repo, fixedClock{t: now})
	ctx := context.Background()

	exam, err := svc.ExamineAndStore(ctx, "acme", "job-1", "doc-1", `{"risk":"HIGH"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, exam.ID)
	assert.Equal(t, "acme", exam.TenantID)
	assert.Equal(t, "job-1", exam.JobID)
	assert.Equal(t, "doc-1", exam.DocumentID)
	assert.Equal(t, `{"verdict":"tampered-likely"}`, exam.Result)
	assert.True(t, exam.CreatedAt.Equal(now))

	require.Len(t, client.calls, 1)
	assert.Equal(t, `{"risk":"HIGH"}`, client.calls[0])

	stored, err := svc.LatestForJob(ctx, "acme", "job-1")
	require.NoError(t, err)
	assert.Equal(t, exam.ID, stored.ID)
}

func TestExamineAndStore_ClientErrorNotPersisted(t *testing.T) {
	client := &stubClient{err: errors.New("model unavailable")}
	repo := memorydb.NewAnalystRepository()
	svc := appai.NewService(client, repo, fixedClock{t: time.Now()})
	ctx := context.Background()

	_, err := svc.ExamineAndStore(ctx, "acme", "job-1", "doc-1", "{}")
	require.Error(t, err)

	_, err = svc.LatestForJob(ctx, "acme", "job-1")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestExamine_DoesNotPersist(t *testing.T) {
	client := &stubClient{out: "narrative"}
	repo := memorydb.NewAnalystRepository()
	svc := appai.NewService(client, repo, fixedClock{t: time.Now()})
	ctx := context.Background()

	out, err := svc.Examine(ctx, "{}")
	require.NoError(t, err)
	assert.Equal(t, "narrative", out)

	list, err := svc.ListExaminations(ctx, "acme", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListExaminations_PagesNewestFirst(t *testing.T) {
	base := time.Date(2026, time.March, 5, 14, 0, 0, 0, time.UTC)
	client := &stubClient{out: "n"}
	repo := memorydb.NewAnalystRepository()

	for i := 0; i < 3; i++ {
		svc := appai.NewService(client, repo, fixedClock{t: base.Add(time.Duration(i) * time.Minute)})
		_, err := svc.ExamineAndStore(context.Background(), "acme", "job", "doc", "{}")
		require.NoError(t, err)
	}

	svc := appai.NewService(client, repo, fixedClock{t: base})
	page, err := svc.ListExaminations(context.Background(), "acme", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
}

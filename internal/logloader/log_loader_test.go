package logloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLogRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]domain.ImportLogEntry
	batches [][]uuid.UUID
	perJob  []int
	err     error
}

func (s *stubLogRepo) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	return nil
}

func (s *stubLogRepo) ListByJob(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error) {
	return s.entries[jobID], nil
}

func (s *stubLogRepo) ListByJobs(ctx context.Context, jobIDs []uuid.UUID, perJob int) (map[uuid.UUID][]domain.ImportLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, jobIDs)
	s.perJob = append(s.perJob, perJob)
	if s.err != nil {
		return nil, s.err
	}
	out := map[uuid.UUID][]domain.ImportLogEntry{}
	for _, id := range jobIDs {
		if entries, ok := s.entries[id]; ok {
			out[id] = entries
		}
	}
	return out, nil
}

func TestLoadManyBatchesAndKeepsOrder(t *testing.T) {
	first, second, empty := uuid.New(), uuid.New(), uuid.New()
	row := 3
	repo := &stubLogRepo{entries: map[uuid.UUID][]domain.ImportLogEntry{
		first:  {{JobID: first, Kind: "InvalidNumber", RowNumber: &row}},
		second: {{JobID: second, Kind: "DownloadFailed"}},
	}}
	loader := NewLogLoader(repo, 5)

	logs, err := loader.LoadMany(context.Background(), []uuid.UUID{second, empty, first})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "DownloadFailed", logs[0][0].Kind)
	assert.NotNil(t, logs[1])
	assert.Empty(t, logs[1])
	assert.Equal(t, "InvalidNumber", logs[2][0].Kind)

	require.Len(t, repo.batches, 1)
	assert.ElementsMatch(t, []uuid.UUID{first, second, empty}, repo.batches[0])
	assert.Equal(t, []int{5}, repo.perJob)

	// Loaded keys are cached for the life of the loader.
	_, err = loader.LoadMany(context.Background(), []uuid.UUID{first})
	require.NoError(t, err)
	assert.Len(t, repo.batches, 1)
}

func TestLoadManyPropagatesRepositoryErrors(t *testing.T) {
	repo := &stubLogRepo{err: errors.New("connection refused")}
	_, err := NewLogLoader(repo, 5).LoadMany(context.Background(), []uuid.UUID{uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	loader := NewLogLoader(&stubLogRepo{}, 1)
	assert.Same(t, loader, FromContext(WithLogLoader(context.Background(), loader)))
}

package watchdog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	before time.Time
	reason string
	ids    []uuid.UUID
	err    error
}

func (s *stubStore) FailStale(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error) {
	s.before = before
	s.reason = reason
	return s.ids, s.err
}

func TestSweepUsesStaleCutoff(t *testing.T) {
	stuck := uuid.New()
	store := &stubStore{ids: []uuid.UUID{stuck}}
	w := New(store, 30*time.Minute, nil)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	ids, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stuck}, ids)
	assert.Equal(t, now.Add(-30*time.Minute), store.before)
	assert.Contains(t, store.reason, "30m0s")
}

func TestSweepWrapsStoreErrors(t *testing.T) {
	w := New(&stubStore{err: errors.New("db down")}, time.Hour, nil)
	_, err := w.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestStartRejectsInvalidScheduleAndDoubleStart(t *testing.T) {
	w := New(&stubStore{}, time.Hour, nil)
	require.Error(t, w.Start("not a schedule"))

	require.NoError(t, w.Start("@every 1h"))
	defer w.Stop()
	assert.Error(t, w.Start("@every 1h"))
}

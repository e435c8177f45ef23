package logloader

import (
	"context"
	"fmt"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// LogLoader batches row-error log reads for many jobs into one query.
type LogLoader struct {
	Loader *dataloader.Loader
}

// NewLogLoader keeps at most perJob entries per job.
func NewLogLoader(repo repository.ImportLogRepository, perJob int) *LogLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		ids := make([]uuid.UUID, 0, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid job id %q: %w", k.String(), err)}
				continue
			}
			ids = append(ids, id)
		}

		entries, err := repo.ListByJobs(ctx, ids, perJob)
		for i, k := range keys {
			if results[i] != nil {
				continue
			}
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			id := uuid.MustParse(k.String())
			jobEntries := entries[id]
			if jobEntries == nil {
				jobEntries = []domain.ImportLogEntry{}
			}
			results[i] = &dataloader.Result{Data: jobEntries}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	return &LogLoader{Loader: loader}
}

// LoadMany resolves the logs of every job in one batch, in the order given.
func (l *LogLoader) LoadMany(ctx context.Context, jobIDs []uuid.UUID) ([][]domain.ImportLogEntry, error) {
	thunks := make([]dataloader.Thunk, len(jobIDs))
	for i, id := range jobIDs {
		thunks[i] = l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	}

	out := make([][]domain.ImportLogEntry, len(jobIDs))
	for i, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			return nil, fmt.Errorf("load import logs for job %s: %w", jobIDs[i], err)
		}
		entries, ok := data.([]domain.ImportLogEntry)
		if !ok {
			return nil, fmt.Errorf("load import logs for job %s: unexpected %T", jobIDs[i], data)
		}
		out[i] = entries
	}
	return out, nil
}

type ctxKey string

const logLoaderKey ctxKey = "logLoader"

// WithLogLoader stores l in the context.
func WithLogLoader(ctx context.Context, l *LogLoader) context.Context {
	return context.WithValue(ctx, logLoaderKey, l)
}

// FromContext returns the request's loader, or nil.
func FromContext(ctx context.Context) *LogLoader {
	if l, ok := ctx.Value(logLoaderKey).(*LogLoader); ok {
		return l
	}
	return nil
}

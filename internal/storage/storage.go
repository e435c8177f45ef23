package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrObjectNotFound is returned when the storage path does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectTooLarge is returned when an object exceeds the download limit.
	ErrObjectTooLarge = errors.New("object exceeds size limit")
)

// Downloader fetches uploaded files by storage path.
type Downloader interface {
	Download(ctx context.Context, path string, maxBytes int64) ([]byte, error)
}

// readLimited reads r fully unless it holds more than maxBytes.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, maxBytes)
	}
	return data, nil
}

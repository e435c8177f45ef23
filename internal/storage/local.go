package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalDownloader serves objects from a directory; used in development and tests.
type LocalDownloader struct {
	root string
}

// NewLocalDownloader roots all paths at dir.
func NewLocalDownloader(dir string) *LocalDownloader {
	return &LocalDownloader{root: dir}
}

// Download implements Downloader.
func (d *LocalDownloader) Download(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	full := filepath.Join(d.root, clean)

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil && maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, path, info.Size())
	}
	return readLimited(f, maxBytes)
}
